package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

// chargeLineReportRow is a denormalized read model joining charge and
// charge-line data, maintained by the charge package's writes (same
// pattern as a materialized view, kept simple here as a plain table the
// charge SQLRepo writes alongside its own rows).
type chargeLineReportRow struct {
	OrderID         string `gorm:"column:order_id;index"`
	ChargeID        string `gorm:"column:charge_id"`
	StoreID         uint32 `gorm:"index"`
	ProductID       uint64
	AttrSetSeq      uint16
	Qty             int64
	AmountOrigLabel string
	AmountOrigValue string
	State           string
	CreateTime      time.Time
}

func (chargeLineReportRow) TableName() string { return "charge_line" }

// SQLRepo is the GORM/Postgres production backend for Repo.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) FetchChargeLines(ctx context.Context, storeID uint32, window TimeRange) ([]ChargeLineRow, error) {
	var rows []chargeLineReportRow
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND create_time > ? AND create_time < ?", storeID, window.StartAfter, window.EndBefore).
		Find(&rows).Error
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make([]ChargeLineRow, 0, len(rows))
	for _, row := range rows {
		amountValue, err := decimal.NewFromString(row.AmountOrigValue)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		out = append(out, ChargeLineRow{
			OrderID: row.OrderID, ChargeID: row.ChargeID,
			Pid:        catalog.Pid{StoreID: row.StoreID, ProductID: row.ProductID, AttrSetSeq: row.AttrSetSeq},
			Qty:        row.Qty,
			AmountOrig: money.NewAmount(row.AmountOrigLabel, amountValue),
			State:      row.State,
			CreateTime: row.CreateTime,
		})
	}
	return out, nil
}
