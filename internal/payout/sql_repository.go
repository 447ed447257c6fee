package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/charge"
)

type payoutRow struct {
	PayoutID      []byte `gorm:"primaryKey;column:payout_id"`
	ChargeID      []byte `gorm:"column:charge_id;index"`
	MerchantID    uint64 `gorm:"index"`
	TransferGroup string
	AmountLabel   string
	AmountValue   string
	TransferID    string
	CreateTime    time.Time
}

func (payoutRow) TableName() string { return "payout" }

// SQLRepo is the GORM/Postgres production backend for Repo.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Create(ctx context.Context, p *Payout) error {
	row := &payoutRow{
		PayoutID: p.PayoutID[:], ChargeID: p.ChargeID[:], MerchantID: p.MerchantID,
		TransferGroup: p.TransferGroup, AmountLabel: p.AmountLabel, AmountValue: p.AmountValue.String(),
		TransferID: p.TransferID, CreateTime: p.CreateTime,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

func (r *SQLRepo) FetchByChargeAndMerchant(ctx context.Context, chargeID charge.ID, merchantID uint64) ([]Payout, error) {
	var rows []payoutRow
	if err := r.db.WithContext(ctx).
		Where("charge_id = ? AND merchant_id = ?", chargeID[:], merchantID).
		Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make([]Payout, 0, len(rows))
	for _, row := range rows {
		v, err := decimal.NewFromString(row.AmountValue)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		var pid ID
		copy(pid[:], row.PayoutID)
		var cid charge.ID
		copy(cid[:], row.ChargeID)
		out = append(out, Payout{
			PayoutID: pid, ChargeID: cid, MerchantID: row.MerchantID, TransferGroup: row.TransferGroup,
			AmountLabel: row.AmountLabel, AmountValue: v, TransferID: row.TransferID, CreateTime: row.CreateTime,
		})
	}
	return out, nil
}
