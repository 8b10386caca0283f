package tracking

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/ses-gateway/internal/domain"
)

type fakeMessageStore struct {
	messages map[uuid.UUID]*domain.Message
	opened   map[uuid.UUID]bool
}

func newFakeMessageStore(ids ...uuid.UUID) *fakeMessageStore {
	s := &fakeMessageStore{
		messages: make(map[uuid.UUID]*domain.Message),
		opened:   make(map[uuid.UUID]bool),
	}
	for _, id := range ids {
		s.messages[id] = &domain.Message{ID: id, Status: domain.StatusSent}
	}
	return s
}

func (s *fakeMessageStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	return s.messages[id], nil
}

func (s *fakeMessageStore) MarkOpened(_ context.Context, id uuid.UUID) (bool, error) {
	if s.opened[id] {
		return false, nil
	}
	s.opened[id] = true
	return true, nil
}

type fakeClickStore struct {
	clicks []domain.ClickEvent
}

func (s *fakeClickStore) Insert(_ context.Context, c *domain.ClickEvent) error {
	s.clicks = append(s.clicks, *c)
	return nil
}

func TestRecordOpenFirstWins(t *testing.T) {
	id := uuid.New()
	store := newFakeMessageStore(id)
	rec := NewRecorder(store, &fakeClickStore{})
	ctx := context.Background()

	won, err := rec.RecordOpen(ctx, id.String())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = rec.RecordOpen(ctx, id.String())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRecordOpenUnknownMessage(t *testing.T) {
	rec := NewRecorder(newFakeMessageStore(), &fakeClickStore{})

	won, err := rec.RecordOpen(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRecordOpenMalformedID(t *testing.T) {
	rec := NewRecorder(newFakeMessageStore(), &fakeClickStore{})

	won, err := rec.RecordOpen(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRecordClickIsCumulative(t *testing.T) {
	id := uuid.New()
	store := newFakeMessageStore(id)
	clicks := &fakeClickStore{}
	rec := NewRecorder(store, clicks)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rec.RecordClick(ctx, id.String(), "https://example.com/offer")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// Every click stores a row, repeats of the same URL included.
	require.Len(t, clicks.clicks, 3)
	assert.Equal(t, id, clicks.clicks[0].MessageID)
	assert.Equal(t, "https://example.com/offer", clicks.clicks[0].URL)
}

func TestRecordClickUnknownMessage(t *testing.T) {
	clicks := &fakeClickStore{}
	rec := NewRecorder(newFakeMessageStore(), clicks)

	ok, err := rec.RecordClick(context.Background(), uuid.New().String(), "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, clicks.clicks)
}
