package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

// Snapshot shares reference tables across replicas through redis. Tables are
// read from redis first and loaded from the wrapped repository on a miss.
// Redis failures are logged and bypassed. Stored tables live until
// Invalidate unless a positive ttl is given.
type Snapshot struct {
	next   VocabularyRepository
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ VocabularyRepository = (*Snapshot)(nil)

func NewSnapshot(next VocabularyRepository, client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "carvitra:vocab:"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Snapshot{next: next, client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (s *Snapshot) key(v constants.Vocabulary) string { return s.prefix + string(v) }

func (s *Snapshot) ListEntries(ctx context.Context, vocabulary constants.Vocabulary) ([]entity.ReferenceEntry, error) {
	data, err := s.client.Get(ctx, s.key(vocabulary)).Bytes()
	switch {
	case err == nil:
		var entries []entity.ReferenceEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			s.logger.Debug("repository.snapshot.hit", "vocabulary", vocabulary, "entries", len(entries))
			return entries, nil
		}
		s.logger.Warn("repository.snapshot.corrupt", "vocabulary", vocabulary)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("repository.snapshot.read_failed", "vocabulary", vocabulary, "error", err)
	}

	entries, err := s.next.ListEntries(ctx, vocabulary)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		if err := s.client.Set(ctx, s.key(vocabulary), data, s.ttl).Err(); err != nil {
			s.logger.Warn("repository.snapshot.write_failed", "vocabulary", vocabulary, "error", err)
		}
	}
	return entries, nil
}

func (s *Snapshot) Counts(ctx context.Context) (map[constants.Vocabulary]int, error) {
	return s.next.Counts(ctx)
}

// Invalidate drops every shared table so the next read reloads from the database.
func (s *Snapshot) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(constants.AllVocabularies()))
	for _, v := range constants.AllVocabularies() {
		keys = append(keys, s.key(v))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	s.logger.Info("repository.snapshot.invalidated", "keys", len(keys))
	return nil
}
