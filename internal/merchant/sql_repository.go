package merchant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
)

type profileRow struct {
	MerchantID      uint64 `gorm:"primaryKey"`
	StoreID         uint32
	CreateTime      time.Time
	AccountID       string
	PayoutsEnabled  bool
	TransfersActive bool
	ChargesEnabled  bool
	StaffIDsJSON    string `gorm:"column:staff_ids_json"`
	CurrencyLabel   string
	RateToBase      string
}

func (profileRow) TableName() string { return "merchant_profile" }

// SQLRepo is the GORM/Postgres production backend for Repo. The merchant
// and 3rd-party profile are stored in one row (merchant_3party never
// exists without a merchant_profile), flattening the nested value object
// into the same row rather than a separate join table.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Create(ctx context.Context, p *Profile) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

func (r *SQLRepo) UpdateThirdParty(ctx context.Context, merchantID uint64, tp ThirdPartyProfile) error {
	res := r.db.WithContext(ctx).Model(&profileRow{}).Where("merchant_id = ?", merchantID).Updates(map[string]interface{}{
		"account_id":       tp.AccountID,
		"payouts_enabled":  tp.PayoutsEnabled,
		"transfers_active": tp.TransfersActive,
		"charges_enabled":  tp.ChargesEnabled,
	})
	if res.Error != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotExist
	}
	return nil
}

func (r *SQLRepo) FetchByID(ctx context.Context, merchantID uint64) (*Profile, error) {
	var row profileRow
	err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.ErrNotExist
	} else if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return fromRow(row)
}

func toRow(p *Profile) (*profileRow, error) {
	staffJSON, err := json.Marshal(p.StaffIDs)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	return &profileRow{
		MerchantID: p.MerchantID, StoreID: p.StoreID, CreateTime: p.CreateTime,
		AccountID: p.ThirdParty.AccountID, PayoutsEnabled: p.ThirdParty.PayoutsEnabled,
		TransfersActive: p.ThirdParty.TransfersActive, ChargesEnabled: p.ThirdParty.ChargesEnabled,
		StaffIDsJSON: string(staffJSON), CurrencyLabel: p.CurrencyLabel, RateToBase: p.RateToBase.String(),
	}, nil
}

func fromRow(row profileRow) (*Profile, error) {
	var staffIDs []uint64
	if row.StaffIDsJSON != "" {
		if err := json.Unmarshal([]byte(row.StaffIDsJSON), &staffIDs); err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
	}
	rate := decimal.Zero
	if row.RateToBase != "" {
		v, err := decimal.NewFromString(row.RateToBase)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		rate = v
	}
	return &Profile{
		MerchantID: row.MerchantID, StoreID: row.StoreID, CreateTime: row.CreateTime,
		ThirdParty: ThirdPartyProfile{
			AccountID: row.AccountID, PayoutsEnabled: row.PayoutsEnabled,
			TransfersActive: row.TransfersActive, ChargesEnabled: row.ChargesEnabled,
		},
		StaffIDs: staffIDs, CurrencyLabel: row.CurrencyLabel, RateToBase: rate,
	}, nil
}
