package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

type countingRepo struct {
	mu      sync.Mutex
	entries []entity.ReferenceEntry
	err     error
	calls   int
}

func (c *countingRepo) ListEntries(context.Context, constants.Vocabulary) ([]entity.ReferenceEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.entries, c.err
}

func (c *countingRepo) Counts(context.Context) (map[constants.Vocabulary]int, error) {
	return map[constants.Vocabulary]int{constants.VocabularyMakes: len(c.entries)}, nil
}

func setupSnapshot(t *testing.T, next VocabularyRepository) (*Snapshot, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshot(next, client, "test:", time.Hour, nil), mr
}

var bmw = []entity.ReferenceEntry{{ID: "make-bmw", DisplayName: "BMW"}}

func TestSnapshot_MissLoadsAndStores(t *testing.T) {
	next := &countingRepo{entries: bmw}
	s, mr := setupSnapshot(t, next)
	ctx := context.Background()

	got, err := s.ListEntries(ctx, constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, bmw, got)
	assert.True(t, mr.Exists("test:makes"))
	assert.Equal(t, time.Hour, mr.TTL("test:makes"))

	got, err = s.ListEntries(ctx, constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, bmw, got)
	assert.Equal(t, 1, next.calls, "second read is served from redis")
}

func TestSnapshot_NoTTLKeepsTablesUntilInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	next := &countingRepo{entries: bmw}
	s := NewSnapshot(next, client, "", 0, nil)
	ctx := context.Background()

	_, err := s.ListEntries(ctx, constants.VocabularyMakes)
	require.NoError(t, err)
	assert.True(t, mr.Exists("carvitra:vocab:makes"))
	assert.Zero(t, mr.TTL("carvitra:vocab:makes"), "no expiry")

	mr.FastForward(30 * 24 * time.Hour)
	_, err = s.ListEntries(ctx, constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)

	require.NoError(t, s.Invalidate(ctx))
	_, err = s.ListEntries(ctx, constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestSnapshot_SharedAcrossInstances(t *testing.T) {
	s, mr := setupSnapshot(t, &countingRepo{entries: bmw})
	_, err := s.ListEntries(context.Background(), constants.VocabularyMakes)
	require.NoError(t, err)

	other := &countingRepo{}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	replica := NewSnapshot(other, client, "test:", time.Hour, nil)

	got, err := replica.ListEntries(context.Background(), constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, bmw, got)
	assert.Zero(t, other.calls)
}

func TestSnapshot_Invalidate(t *testing.T) {
	next := &countingRepo{entries: bmw}
	s, mr := setupSnapshot(t, next)
	ctx := context.Background()

	_, _ = s.ListEntries(ctx, constants.VocabularyMakes)
	require.NoError(t, s.Invalidate(ctx))
	assert.False(t, mr.Exists("test:makes"))

	_, _ = s.ListEntries(ctx, constants.VocabularyMakes)
	assert.Equal(t, 2, next.calls)
}

func TestSnapshot_CorruptValueReloads(t *testing.T) {
	next := &countingRepo{entries: bmw}
	s, mr := setupSnapshot(t, next)
	require.NoError(t, mr.Set("test:makes", "{not json"))

	got, err := s.ListEntries(context.Background(), constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, bmw, got)
	assert.Equal(t, 1, next.calls)
}

func TestSnapshot_RedisDownFallsThrough(t *testing.T) {
	next := &countingRepo{entries: bmw}
	s, mr := setupSnapshot(t, next)
	mr.Close()

	got, err := s.ListEntries(context.Background(), constants.VocabularyMakes)
	require.NoError(t, err)
	assert.Equal(t, bmw, got)
}

func TestSnapshot_SourceErrorIsNotStored(t *testing.T) {
	next := &countingRepo{err: errors.New("connection refused")}
	s, mr := setupSnapshot(t, next)

	_, err := s.ListEntries(context.Background(), constants.VocabularyMakes)
	assert.Error(t, err)
	assert.False(t, mr.Exists("test:makes"))
}
