package returns

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

func parseAmount(label, value string) (money.Amount, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return money.Amount{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	return money.NewAmount(label, v), nil
}

// returnRow is one accepted return: one row per (order_id, pid,
// rounded_time) rather than a single JSON blob per pid, so the
// duplicate-time guard can be enforced with a unique index in production.
type returnRow struct {
	OrderID         string `gorm:"primaryKey;column:order_id"`
	StoreID         uint32 `gorm:"primaryKey;column:store_id"`
	ProductID       uint64 `gorm:"primaryKey;column:product_id"`
	AttrSetSeq      uint16 `gorm:"primaryKey;column:attr_set_seq"`
	RoundedTime        int64 `gorm:"primaryKey;column:rounded_time"`
	Qty                int64
	RefundPerUnitLabel string
	RefundPerUnitValue string
	RefundTotalLabel   string
	RefundTotalValue   string
}

func (returnRow) TableName() string { return "order_return" }

// SQLRepo is the GORM/Postgres production backend for Repo.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) FetchByOrder(ctx context.Context, orderID string) (map[catalog.Pid]OrderReturnModel, error) {
	var rows []returnRow
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make(map[catalog.Pid]OrderReturnModel)
	for _, row := range rows {
		pid := catalog.Pid{StoreID: row.StoreID, ProductID: row.ProductID, AttrSetSeq: row.AttrSetSeq}
		model, ok := out[pid]
		if !ok {
			model = OrderReturnModel{OrderID: orderID, Pid: pid, Entries: make(map[int64]ReturnEntry)}
		}
		entry, err := rowToEntry(row)
		if err != nil {
			return nil, err
		}
		model.Entries[row.RoundedTime] = entry
		out[pid] = model
	}
	return out, nil
}

func (r *SQLRepo) FetchAllPending(ctx context.Context) ([]OrderReturnModel, error) {
	var rows []returnRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make(map[string]map[catalog.Pid]OrderReturnModel)
	for _, row := range rows {
		pid := catalog.Pid{StoreID: row.StoreID, ProductID: row.ProductID, AttrSetSeq: row.AttrSetSeq}
		byPid, ok := out[row.OrderID]
		if !ok {
			byPid = make(map[catalog.Pid]OrderReturnModel)
			out[row.OrderID] = byPid
		}
		model, ok := byPid[pid]
		if !ok {
			model = OrderReturnModel{OrderID: row.OrderID, Pid: pid, Entries: make(map[int64]ReturnEntry)}
		}
		entry, err := rowToEntry(row)
		if err != nil {
			return nil, err
		}
		model.Entries[row.RoundedTime] = entry
		byPid[pid] = model
	}
	var flat []OrderReturnModel
	for _, byPid := range out {
		for _, m := range byPid {
			flat = append(flat, m)
		}
	}
	return flat, nil
}

func (r *SQLRepo) Merge(ctx context.Context, models []OrderReturnModel) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range models {
			for roundedTime, entry := range m.Entries {
				row := returnRow{
					OrderID: m.OrderID, StoreID: m.Pid.StoreID, ProductID: m.Pid.ProductID, AttrSetSeq: m.Pid.AttrSetSeq,
					RoundedTime: roundedTime, Qty: entry.Qty,
					RefundPerUnitLabel: entry.RefundPerUnit.Label, RefundPerUnitValue: entry.RefundPerUnit.Value.String(),
					RefundTotalLabel: entry.RefundTotal.Label, RefundTotalValue: entry.RefundTotal.Value.String(),
				}
				err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
				if err != nil {
					return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
				}
			}
		}
		return nil
	})
}

func rowToEntry(row returnRow) (ReturnEntry, error) {
	perUnit, err := parseAmount(row.RefundPerUnitLabel, row.RefundPerUnitValue)
	if err != nil {
		return ReturnEntry{}, err
	}
	total, err := parseAmount(row.RefundTotalLabel, row.RefundTotalValue)
	if err != nil {
		return ReturnEntry{}, err
	}
	return ReturnEntry{Qty: row.Qty, RefundPerUnit: perUnit, RefundTotal: total}, nil
}
