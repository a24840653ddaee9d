package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-pricing-engine/internal/cache"
	"github.com/fairyhunter13/order-pricing-engine/internal/model"
	"github.com/fairyhunter13/order-pricing-engine/internal/pricing"
	"github.com/fairyhunter13/order-pricing-engine/pkg/retry"
)

const cacheKeyPrefix = "discount:"

var (
	maxPercentage = decimal.NewFromInt(100)
	// maxAmount bounds the NUMERIC(12, 2) columns.
	maxAmount = decimal.New(1, 10)
)

// DiscountRepositoryInterface defines the interface for discount data access.
type DiscountRepositoryInterface interface {
	GetByCode(ctx context.Context, code string) (*model.DiscountRecord, error)
	List(ctx context.Context) ([]model.DiscountRecord, error)
	Insert(ctx context.Context, discount *model.DiscountRecord) error
	Update(ctx context.Context, discount *model.DiscountRecord) error
	SoftDelete(ctx context.Context, code string) error
}

// UsageRecorder receives one event per successful validation.
type UsageRecorder interface {
	Enqueue(discountID uuid.UUID)
}

// DiscountOptions tunes the read path of DiscountService.
type DiscountOptions struct {
	CacheTTL   time.Duration
	ReadPolicy retry.Policy
}

// DiscountService validates discount codes against carts and manages discount records.
type DiscountService struct {
	repo  DiscountRepositoryInterface
	cache cache.Cache
	usage UsageRecorder
	opts  DiscountOptions
	now   func() time.Time
}

// NewDiscountService creates a new DiscountService.
func NewDiscountService(repo DiscountRepositoryInterface, c cache.Cache, usage UsageRecorder, opts DiscountOptions) *DiscountService {
	return &DiscountService{
		repo:  repo,
		cache: c,
		usage: usage,
		opts:  opts,
		now:   time.Now,
	}
}

// NormalizeCode is the canonical form of a discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cacheKey(code string) string {
	return cacheKeyPrefix + code
}

// Validate decides whether code applies to a cart with the given total and
// categories. Gates run in a fixed order and the first failure is returned:
//   - ErrInvalidRequest for an empty code
//   - ErrDiscountNotFound if the code is unknown, inactive, deleted or outside its window
//   - ErrUsageLimitReached if the usage limit is exhausted
//   - *MinOrderError (matching ErrMinOrderNotMet) if cartTotal is below the minimum
//   - ErrNotApplicable if no cart category is covered
//
// On success one usage event is recorded for the discount.
func (s *DiscountService) Validate(ctx context.Context, code string, cartTotal decimal.Decimal, categories []string) (*model.AppliedDiscount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidRequest
	}

	record, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if record.UsageLimit != nil && record.UsageCount >= *record.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	if record.MinOrderValue != nil && cartTotal.LessThan(*record.MinOrderValue) {
		return nil, &MinOrderError{Required: *record.MinOrderValue}
	}

	if !appliesTo(record.Categories, categories) {
		return nil, ErrNotApplicable
	}

	applied := &model.AppliedDiscount{
		DiscountRecord: *record,
		DiscountAmount: pricing.DiscountAmount(record.Kind, record.Value, record.MaxDiscount, cartTotal),
	}

	if s.usage != nil {
		s.usage.Enqueue(record.ID)
	}

	return applied, nil
}

// lookup resolves a live record through the cache, falling back to the store.
// Records with a usage limit always come from the store: their usage count
// moves with every flush, so a cached copy cannot gate the limit.
func (s *DiscountService) lookup(ctx context.Context, code string) (*model.DiscountRecord, error) {
	now := s.now()

	if record := s.fromCache(ctx, code); record != nil {
		if record.LiveAt(now) && record.UsageLimit == nil {
			return record, nil
		}
		s.invalidate(ctx, code)
	}

	var record *model.DiscountRecord
	err := s.opts.ReadPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.repo.GetByCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	if record == nil || !record.LiveAt(now) {
		return nil, ErrDiscountNotFound
	}

	if record.UsageLimit == nil {
		s.toCache(ctx, record)
	}
	return record, nil
}

func (s *DiscountService) fromCache(ctx context.Context, code string) *model.DiscountRecord {
	if s.cache == nil {
		return nil
	}

	data, found, err := s.cache.Get(ctx, cacheKey(code))
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("discount cache read failed")
		return nil
	}
	if !found {
		return nil
	}

	var record model.DiscountRecord
	if err := json.Unmarshal(data, &record); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("discarding undecodable cache entry")
		s.invalidate(ctx, code)
		return nil
	}
	return &record
}

func (s *DiscountService) toCache(ctx context.Context, record *model.DiscountRecord) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		log.Warn().Err(err).Str("code", record.Code).Msg("failed to encode discount for cache")
		return
	}
	if err := s.cache.Set(ctx, cacheKey(record.Code), data, s.opts.CacheTTL); err != nil {
		log.Warn().Err(err).Str("code", record.Code).Msg("discount cache write failed")
	}
}

func (s *DiscountService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(code)); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("discount cache invalidation failed")
	}
}

// appliesTo reports whether a discount scoped to allowed covers any of the cart categories.
// An empty scope behaves like "all".
func appliesTo(allowed, cart []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, model.AllCategories) {
			return true
		}
	}
	for _, a := range allowed {
		for _, c := range cart {
			if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(c)) {
				return true
			}
		}
	}
	return false
}

// Create creates a new discount from the request.
// Returns ErrDiscountExists if a live discount already uses the code.
// Returns ErrInvalidRequest if request data is nil or inconsistent.
func (s *DiscountService) Create(ctx context.Context, req *model.DiscountRequest) (*model.DiscountRecord, error) {
	record, err := s.recordFromRequest(req)
	if err != nil {
		return nil, err
	}
	record.ID = uuid.New()

	if err := s.repo.Insert(ctx, record); err != nil {
		if errors.Is(err, ErrDiscountExists) {
			return nil, ErrDiscountExists
		}
		return nil, fmt.Errorf("insert discount: %w", err)
	}
	return record, nil
}

// Get retrieves a discount by code, including inactive or expired ones.
// Returns ErrDiscountNotFound if no live record uses the code.
func (s *DiscountService) Get(ctx context.Context, code string) (*model.DiscountRecord, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidRequest
	}

	record, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	if record == nil {
		return nil, ErrDiscountNotFound
	}
	return record, nil
}

// List returns every discount that has not been deleted.
func (s *DiscountService) List(ctx context.Context) ([]model.DiscountRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return records, nil
}

// Update replaces the editable fields of the discount identified by code.
// The usage count is never touched. Cache entries for the old and new code are dropped.
func (s *DiscountService) Update(ctx context.Context, code string, req *model.DiscountRequest) (*model.DiscountRecord, error) {
	existing, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	record, err := s.recordFromRequest(req)
	if err != nil {
		return nil, err
	}
	record.ID = existing.ID
	record.UsageCount = existing.UsageCount
	record.CreatedAt = existing.CreatedAt
	if req.Active == nil {
		record.Active = existing.Active
	}
	if req.ValidFrom == nil {
		record.ValidFrom = existing.ValidFrom
		if !record.ValidUntil.After(record.ValidFrom) {
			return nil, ErrInvalidRequest
		}
	}

	if err := s.repo.Update(ctx, record); err != nil {
		switch {
		case errors.Is(err, ErrDiscountNotFound):
			return nil, ErrDiscountNotFound
		case errors.Is(err, ErrDiscountExists):
			return nil, ErrDiscountExists
		}
		return nil, fmt.Errorf("update discount: %w", err)
	}

	s.invalidate(ctx, existing.Code)
	if record.Code != existing.Code {
		s.invalidate(ctx, record.Code)
	}
	return record, nil
}

// Delete soft-deletes the discount so that historical usage rows keep their reference.
func (s *DiscountService) Delete(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if code == "" {
		return ErrInvalidRequest
	}

	if err := s.repo.SoftDelete(ctx, code); err != nil {
		if errors.Is(err, ErrDiscountNotFound) {
			return ErrDiscountNotFound
		}
		return fmt.Errorf("delete discount: %w", err)
	}

	s.invalidate(ctx, code)
	return nil
}

func (s *DiscountService) recordFromRequest(req *model.DiscountRequest) (*model.DiscountRecord, error) {
	// Defense-in-depth: check for nil pointers even though handler validates
	if req == nil || req.Value == nil || req.ValidUntil == nil {
		return nil, ErrInvalidRequest
	}

	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, ErrInvalidRequest
	}

	for _, d := range []*decimal.Decimal{req.Value, req.MinOrderValue, req.MaxDiscount} {
		if d != nil && !fitsAmountColumn(*d) {
			return nil, ErrInvalidRequest
		}
	}

	switch req.Kind {
	case model.DiscountPercentage:
		if req.Value.GreaterThan(maxPercentage) {
			return nil, ErrInvalidRequest
		}
	case model.DiscountFixed, model.DiscountBOGO:
	default:
		return nil, ErrInvalidRequest
	}

	now := s.now()
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	if !req.ValidUntil.After(validFrom) {
		return nil, ErrInvalidRequest
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	categories := normalizeCategories(req.Categories)

	return &model.DiscountRecord{
		Code:          code,
		Kind:          req.Kind,
		Value:         *req.Value,
		MinOrderValue: req.MinOrderValue,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		Categories:    categories,
		Active:        active,
		ValidFrom:     validFrom,
		ValidUntil:    *req.ValidUntil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// fitsAmountColumn reports whether d is stored without rounding: at most two
// decimal places and below 10^10.
func fitsAmountColumn(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && d.Abs().LessThan(maxAmount)
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return []string{model.AllCategories}
	}
	return out
}
