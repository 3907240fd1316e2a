package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"spendly/internal/cache"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/storage"
	"spendly/internal/stream"
)

const (
	budgetCacheSize = 1024
	budgetCacheTTL  = 10 * time.Minute
)

// ProfileService reads and changes per-user settings. Budgets are read
// through an LRU cache that is invalidated on every update. A read only fills
// the cache if no update landed while it was in flight.
type ProfileService struct {
	store   storage.UserStore
	hub     *stream.Hub
	budgets *cache.LRUCache[decimal.Decimal]
	loads   singleflight.Group
	logger  *log.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

func NewProfileService(store storage.UserStore, hub *stream.Hub, logger *log.Logger) *ProfileService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ProfileService{
		store:   store,
		hub:     hub,
		budgets:     cache.NewLRUCache[decimal.Decimal](budgetCacheSize, budgetCacheTTL),
		logger:      logger.WithComponent(log.ComponentProfile),
		generations: make(map[string]uint64),
	}
}

// BudgetCache exposes the cache for registration with a cache.Manager.
func (s *ProfileService) BudgetCache() *cache.LRUCache[decimal.Decimal] {
	return s.budgets
}

func (s *ProfileService) Profile(ctx context.Context, userID string) (core.Profile, error) {
	gen := s.generation(userID)
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return core.Profile{}, core.AsSetupError(fmt.Errorf("get profile: %w", err))
	}
	s.cacheBudget(userID, gen, p.MonthlyBudget)
	return p, nil
}

// Budget returns the monthly budget of userID. Concurrent misses for the
// same user and generation share one store read.
func (s *ProfileService) Budget(ctx context.Context, userID string) (decimal.Decimal, error) {
	if b, ok := s.budgets.Get(userID); ok {
		return b, nil
	}
	key := userID + "#" + strconv.FormatUint(s.generation(userID), 10)
	v, err, _ := s.loads.Do(key, func() (any, error) {
		p, err := s.Profile(ctx, userID)
		if err != nil {
			return nil, err
		}
		return p.MonthlyBudget, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

func (s *ProfileService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// cacheBudget stores b unless an update bumped the generation since gen was
// taken.
func (s *ProfileService) cacheBudget(userID string, gen uint64, b decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		return
	}
	s.budgets.Set(userID, b)
}

func (s *ProfileService) invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	s.budgets.Delete(userID)
}

// UpdateBudget validates and stores a new monthly budget.
func (s *ProfileService) UpdateBudget(ctx context.Context, userID string, budget decimal.Decimal) error {
	if !budget.IsPositive() {
		return core.ErrInvalidBudget
	}
	if err := s.store.UpdateBudget(ctx, userID, budget); err != nil {
		return core.AsSetupError(fmt.Errorf("update budget: %w", err))
	}
	s.invalidate(userID)

	s.logger.InfoContext(ctx, "Budget updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldUserID, userID,
		log.FieldAmount, core.FormatAmount(budget))
	if s.hub != nil {
		s.hub.Publish(stream.Event{Kind: stream.ProfileChanged, UserID: userID})
	}
	return nil
}
