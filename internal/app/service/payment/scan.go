package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/pkg/types"
)

// ScanTransactionsRequest is the admin list query.
type ScanTransactionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanTransactionsResponse struct {
	Items []*models.Transaction `json:"items"`
	Total int64                 `json:"total"`
}

const maxScanSize = 200

var scanFilterFields = []string{
	"id", "order_id", "temp_order_ref", "order_ref", "provider", "provider_ref", "merchant_request_id",
	"phone", "amount", "currency", "status", "submission_status", "receipt_number",
	"created_at", "updated_at", "completed_at",
}

var scanSortFields = []string{"created_at", "updated_at", "completed_at", "amount", "status"}

// filtersAnd is a helper to combine multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (req *ScanTransactionsRequest) normalize() error {
	if req.Size <= 0 {
		req.Size = 10
	}
	req.Size = min(req.Size, maxScanSize)
	req.From = max(req.From, 0)

	req.SortOrder = strings.ToLower(req.SortOrder)
	if req.SortBy == "" {
		req.SortBy = "created_at"
	}
	if !lo.Contains(scanSortFields, req.SortBy) {
		return fmt.Errorf("%w: cannot sort by %s", ErrInvalidRequest, req.SortBy)
	}

	for _, f := range req.Filters {
		if f == nil {
			return fmt.Errorf("%w: empty filter", ErrInvalidRequest)
		}
		if err := f.Validate(scanFilterFields); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if err := canonicalFilterValues(f); err != nil {
			return err
		}
	}
	return nil
}

// canonicalFilterValues lets admins filter by "paid" or "Pending" and still hit the stored value.
func canonicalFilterValues(f *types.CommonFilter) error {
	var parse func(string) (string, error)
	switch f.Field {
	case "status":
		parse = func(s string) (string, error) {
			v, err := types.ParseTransactionStatus(s)
			return string(v), err
		}
	case "submission_status":
		parse = func(s string) (string, error) {
			v, err := types.ParseSubmissionStatus(s)
			return string(v), err
		}
	case "provider":
		parse = func(s string) (string, error) {
			v, err := types.ParsePaymentProvider(s)
			return string(v), err
		}
	default:
		return nil
	}
	for i, v := range f.Values {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %s filter values must be strings", ErrInvalidRequest, f.Field)
		}
		c, err := parse(s)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		f.Values[i] = c
	}
	return nil
}

// ScanTransactions implements paginated/admin listing with filters
func (s *Service) ScanTransactions(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []*models.Transaction
	q := tx.Limit(req.Size).Offset(req.From).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"},
			{Column: clause.Column{Name: "id"}},
		}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return &ScanTransactionsResponse{Items: rows, Total: total}, nil
}
