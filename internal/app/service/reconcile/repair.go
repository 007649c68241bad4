package reconcile

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/pkg/logctx"
	"github.com/fatflowers/storepay/pkg/types"
)

type ColumnRepair struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	Updated int64  `json:"updated"`
	// Unknown counts values that match no known spelling; they are left untouched for manual review.
	Unknown int64 `json:"unknown"`
}

type RepairReport struct {
	Columns []ColumnRepair `json:"columns"`
}

func (r *RepairReport) Updated() int64 {
	return lo.SumBy(r.Columns, func(c ColumnRepair) int64 { return c.Updated })
}

// RepairStatuses rewrites stored enum values in lowercase, padded or alias form to their
// canonical uppercase value. Re-running it reports zero updates.
func (s *Service) RepairStatuses(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, col := range types.StoredEnumColumns() {
			rep, err := repairColumn(tx, col)
			if err != nil {
				return err
			}
			report.Columns = append(report.Columns, rep)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("status_repair_done", "updated", report.Updated(), "columns", report.Columns)
	return report, nil
}

func repairColumn(tx *gorm.DB, col types.EnumColumn) (ColumnRepair, error) {
	rep := ColumnRepair{Table: col.Table, Column: col.Column}
	var known []string
	for _, canonical := range lo.Keys(col.Spellings) {
		spellings := col.Spellings[canonical]
		known = append(known, spellings...)
		res := tx.Table(col.Table).
			Where(fmt.Sprintf("UPPER(TRIM(%s)) IN ? AND %s <> ?", col.Column, col.Column), spellings, canonical).
			Update(col.Column, canonical)
		if res.Error != nil {
			return rep, fmt.Errorf("failed to repair %s.%s: %w", col.Table, col.Column, res.Error)
		}
		rep.Updated += res.RowsAffected
	}
	err := tx.Table(col.Table).
		Where(fmt.Sprintf("UPPER(TRIM(%s)) NOT IN ?", col.Column), known).
		Count(&rep.Unknown).Error
	if err != nil {
		return rep, fmt.Errorf("failed to count unknown %s.%s: %w", col.Table, col.Column, err)
	}
	return rep, nil
}
