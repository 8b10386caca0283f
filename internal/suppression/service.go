// Package suppression manages the standing block list of undeliverable and
// complained addresses.
//
// Postgres is the source of truth. A Redis read-through cache fronts the hot
// send-path lookup; cache failures degrade to the database and are never
// fatal.
package suppression

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
)

const (
	cacheKeyPrefix = "suppression:"
	cacheTTL       = 6 * time.Hour
)

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, s *domain.Suppression) (bool, error)
	Get(ctx context.Context, email string) (*domain.Suppression, error)
	Delete(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error)
}

// ListFilter narrows and pages a suppression listing.
type ListFilter struct {
	Reason domain.SuppressionReason
	Limit  int
	Offset int
}

// Service coordinates suppression writes and lookups.
type Service struct {
	store Store
	cache *redis.Client // optional; nil disables caching
}

// NewService creates a suppression service. cache may be nil.
func NewService(store Store, cache *redis.Client) *Service {
	return &Service{store: store, cache: cache}
}

// Suppress adds the normalized address to the block list. Idempotent: an
// existing entry wins on reason and the call returns silently, including
// when a concurrent writer raced this one to the unique index.
func (s *Service) Suppress(ctx context.Context, email string, reason domain.SuppressionReason) error {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return fmt.Errorf("suppress: empty email")
	}

	created, err := s.store.Insert(ctx, &domain.Suppression{
		ID:     uuid.New(),
		Email:  normalized,
		Reason: reason,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("address suppressed", "email", normalized, "reason", string(reason))
	} else {
		logger.Debug("address already suppressed", "email", normalized)
	}

	s.cacheSet(ctx, normalized, true)
	return nil
}

// IsSuppressed reports whether the address is blocked. Redis answers first;
// on a miss or cache error the database decides and the cache is refreshed.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	normalized := domain.NormalizeEmail(email)

	if s.cache != nil {
		val, err := s.cache.Get(ctx, cacheKeyPrefix+normalized).Result()
		switch {
		case err == nil:
			return val == "1", nil
		case err != redis.Nil:
			logger.Warn("suppression cache read failed", "error", err.Error())
		}
	}

	entry, err := s.store.Get(ctx, normalized)
	if err != nil {
		return false, err
	}
	suppressed := entry != nil
	s.cacheSet(ctx, normalized, suppressed)
	return suppressed, nil
}

// Check returns the full suppression entry, or (nil, nil) when the address
// is not blocked. Admin lookups bypass the cache.
func (s *Service) Check(ctx context.Context, email string) (*domain.Suppression, error) {
	return s.store.Get(ctx, domain.NormalizeEmail(email))
}

// Remove lifts a suppression, reporting whether one existed.
func (s *Service) Remove(ctx context.Context, email string) (bool, error) {
	normalized := domain.NormalizeEmail(email)
	removed, err := s.store.Delete(ctx, normalized)
	if err != nil {
		return false, err
	}
	if removed {
		s.cacheDel(ctx, normalized)
		logger.Info("suppression removed", "email", normalized)
	}
	return removed, nil
}

// Add inserts an administrative suppression, reporting whether the address
// was newly blocked. Unlike Suppress, the caller wants to know about the
// duplicate so it can answer with a conflict.
func (s *Service) Add(ctx context.Context, email string, reason domain.SuppressionReason) (*domain.Suppression, bool, error) {
	normalized := domain.NormalizeEmail(email)
	entry := &domain.Suppression{
		ID:     uuid.New(),
		Email:  normalized,
		Reason: reason,
	}
	created, err := s.store.Insert(ctx, entry)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.store.Get(ctx, normalized)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	s.cacheSet(ctx, normalized, true)
	return entry, true, nil
}

// List pages through the suppression list.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error) {
	return s.store.List(ctx, f)
}

func (s *Service) cacheSet(ctx context.Context, email string, suppressed bool) {
	if s.cache == nil {
		return
	}
	val := "0"
	if suppressed {
		val = "1"
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+email, val, cacheTTL).Err(); err != nil {
		logger.Warn("suppression cache write failed", "error", err.Error())
	}
}

func (s *Service) cacheDel(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKeyPrefix+email).Err(); err != nil {
		logger.Warn("suppression cache delete failed", "error", err.Error())
	}
}
