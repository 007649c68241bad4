package statistics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/storepay/internal/models"
	"github.com/fatflowers/storepay/pkg/types"
)

type StatisticType string

const (
	// Daily counts per status, and collected amount per currency
	StatisticTypeDailyTransactionCount StatisticType = "daily_transaction_count"
	StatisticTypeDailyGmv              StatisticType = "daily_gmv"
	// Running total of collected amount per currency
	StatisticTypeTotalGmv StatisticType = "total_gmv"
)

var ErrInvalidRequest = errors.New("invalid statistic request")

var filterFields = []string{"provider", "currency", "status", "created_at", "order_id", "temp_order_ref"}

type PaymentStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type PaymentStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*PaymentStatisticDataItem `json:"data_items"`
}

// Build composes a WHERE clause from the filters.
func (f *PaymentStatisticRequest) Build(builder clause.Builder) {
	if len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

func (f *PaymentStatisticRequest) validate() error {
	if len(f.DataItems) == 0 {
		return fmt.Errorf("%w: no data items", ErrInvalidRequest)
	}
	for _, filter := range f.Filters {
		if filter == nil {
			return fmt.Errorf("%w: empty filter", ErrInvalidRequest)
		}
		if err := filter.Validate(filterFields); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

type PaymentStatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type PaymentStatisticResponse struct {
	DataItems map[StatisticType][]PaymentStatisticResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

// statRow is the slice of a transaction the statistics need. Grouping happens in Go so the
// same code runs on Postgres and SQLite.
type statRow struct {
	CreatedAt time.Time
	Status    types.TransactionStatus
	Currency  string
	Amount    int64
}

func (r statRow) date() string { return r.CreatedAt.UTC().Format(time.DateOnly) }

func (s *Service) load(ctx context.Context, request *PaymentStatisticRequest, completedOnly bool) ([]statRow, error) {
	var rows []statRow
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("created_at, status, currency, amount").
		Where(clause.Where{Exprs: []clause.Expression{request}})
	if completedOnly {
		q = q.Where("UPPER(TRIM(status)) IN ?", types.TransactionStatusCompleted.Spellings())
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return rows, nil
}

func (s *Service) getDailyTransactionCount(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, false)
	if err != nil {
		return nil, err
	}
	groups := lo.GroupBy(rows, func(r statRow) lo.Tuple2[string, string] {
		return lo.T2(r.date(), string(r.Status))
	})
	results := lo.MapToSlice(groups, func(k lo.Tuple2[string, string], v []statRow) PaymentStatisticResponseDataItem {
		return PaymentStatisticResponseDataItem{Date: k.A, Label: k.B, Value: int64(len(v))}
	})
	sortItems(results, false)
	return results, nil
}

func (s *Service) getDailyGmv(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, true)
	if err != nil {
		return nil, err
	}
	results := dailySums(rows)
	sortItems(results, true)
	return results, nil
}

func (s *Service) getTotalGmv(ctx context.Context, request *PaymentStatisticRequest) ([]PaymentStatisticResponseDataItem, error) {
	rows, err := s.load(ctx, request, true)
	if err != nil {
		return nil, err
	}
	daily := dailySums(rows)
	sortItems(daily, false)

	running := map[string]int64{}
	results := lo.Map(daily, func(it PaymentStatisticResponseDataItem, _ int) PaymentStatisticResponseDataItem {
		running[it.Label] += it.Value
		return PaymentStatisticResponseDataItem{Date: it.Date, Label: it.Label, Value: running[it.Label]}
	})
	sortItems(results, true)
	return results, nil
}

func dailySums(rows []statRow) []PaymentStatisticResponseDataItem {
	groups := lo.GroupBy(rows, func(r statRow) lo.Tuple2[string, string] {
		return lo.T2(r.date(), r.Currency)
	})
	return lo.MapToSlice(groups, func(k lo.Tuple2[string, string], v []statRow) PaymentStatisticResponseDataItem {
		return PaymentStatisticResponseDataItem{Date: k.A, Label: k.B, Value: lo.SumBy(v, func(r statRow) int64 { return r.Amount })}
	})
}

// sortItems orders by date, then label ascending.
func sortItems(items []PaymentStatisticResponseDataItem, dateDesc bool) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return (items[i].Date > items[j].Date) == dateDesc
		}
		return items[i].Label < items[j].Label
	})
}

func (s *Service) getPaymentStatistic(ctx context.Context, request *PaymentStatisticRequest, dataItem *PaymentStatisticDataItem) ([]PaymentStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyTransactionCount:
		return s.getDailyTransactionCount(ctx, request)
	case StatisticTypeDailyGmv:
		return s.getDailyGmv(ctx, request)
	case StatisticTypeTotalGmv:
		return s.getTotalGmv(ctx, request)
	default:
		return nil, fmt.Errorf("%w: invalid data item id: %s", ErrInvalidRequest, dataItem.ID)
	}
}

func (s *Service) GetDailyPaymentStatistic(ctx context.Context, request *PaymentStatisticRequest) (*PaymentStatisticResponse, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := request.validate(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []PaymentStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *PaymentStatisticDataItem) {
			defer wg.Done()
			res, err := s.getPaymentStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []PaymentStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	wg.Wait()
	close(errChan)
	close(resChan)
	if err, ok := <-errChan; ok {
		return nil, err
	}

	results := make(map[StatisticType][]PaymentStatisticResponseDataItem, len(request.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &PaymentStatisticResponse{DataItems: results}, nil
}
