package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

const referenceTable = "reference_entries"

// VocabularyRepository is the read-only reference lookup used by the mapping engine.
type VocabularyRepository interface {
	ListEntries(ctx context.Context, vocabulary constants.Vocabulary) ([]entity.ReferenceEntry, error)
	Counts(ctx context.Context) (map[constants.Vocabulary]int, error)
}

type vocabularyRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewVocabularyRepository(db *DB, logger *slog.Logger) VocabularyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &vocabularyRepository{db: db, logger: logger}
}

// ListEntries returns the vocabulary ordered by display name.
func (r *vocabularyRepository) ListEntries(ctx context.Context, vocabulary constants.Vocabulary) ([]entity.ReferenceEntry, error) {
	if !slices.Contains(constants.AllVocabularies(), vocabulary) {
		return nil, common.NewKindError(common.ErrInvalidInput, "VOCABULARY_UNKNOWN", fmt.Sprintf("unknown vocabulary %q", vocabulary), nil)
	}
	start := time.Now()

	b := entsql.Dialect(r.db.Dialect)
	query, args := b.Select("id", "display_name").
		From(b.Table(referenceTable)).
		Where(entsql.EQ("vocabulary", string(vocabulary))).
		OrderBy("display_name", "id").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, common.NewKindError(common.ErrDatabase, "VOCABULARY_QUERY", "list "+string(vocabulary), err)
	}
	defer rows.Close()

	var out []entity.ReferenceEntry
	for rows.Next() {
		var e entity.ReferenceEntry
		if err := rows.Scan(&e.ID, &e.DisplayName); err != nil {
			return nil, common.NewKindError(common.ErrDatabase, "VOCABULARY_SCAN", "scan "+string(vocabulary), err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewKindError(common.ErrDatabase, "VOCABULARY_QUERY", "list "+string(vocabulary), err)
	}

	r.logger.Debug("repository.vocabulary.list",
		"vocabulary", vocabulary,
		"entries", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Counts returns the number of entries of every known vocabulary, zero included.
func (r *vocabularyRepository) Counts(ctx context.Context) (map[constants.Vocabulary]int, error) {
	b := entsql.Dialect(r.db.Dialect)
	query, args := b.Select("vocabulary", entsql.Count("*")).
		From(b.Table(referenceTable)).
		GroupBy("vocabulary").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, common.NewKindError(common.ErrDatabase, "VOCABULARY_COUNT", "count entries", err)
	}
	defer rows.Close()

	out := make(map[constants.Vocabulary]int)
	for _, v := range constants.AllVocabularies() {
		out[v] = 0
	}
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, common.NewKindError(common.ErrDatabase, "VOCABULARY_SCAN", "scan counts", err)
		}
		out[constants.Vocabulary(name)] = n
	}
	return out, rows.Err()
}
