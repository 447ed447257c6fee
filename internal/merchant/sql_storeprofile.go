package merchant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
)

type staffWindowDTO struct {
	StaffID   uint64    `json:"staff_id"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

type storeProfileRow struct {
	StoreID       uint32 `gorm:"primaryKey"`
	StaffJSON     string `gorm:"column:staff_json"`
	CurrencyLabel string
	RateToBase    string
}

func (storeProfileRow) TableName() string { return "store_profile" }

// SQLStoreProfileRepo is the GORM/Postgres production backend for
// StoreProfileRepo.
type SQLStoreProfileRepo struct {
	db *gorm.DB
}

func NewSQLStoreProfileRepo(db *gorm.DB) *SQLStoreProfileRepo { return &SQLStoreProfileRepo{db: db} }

func (r *SQLStoreProfileRepo) FetchByID(ctx context.Context, storeID uint32) (StoreProfile, error) {
	var row storeProfileRow
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return StoreProfile{}, apperror.ErrNotExist
	} else if err != nil {
		return StoreProfile{}, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return fromStoreProfileRow(row)
}

func (r *SQLStoreProfileRepo) Save(ctx context.Context, p StoreProfile) error {
	row, err := toStoreProfileRow(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

func toStoreProfileRow(p StoreProfile) (*storeProfileRow, error) {
	dtos := make([]staffWindowDTO, 0, len(p.Staff))
	for _, w := range p.Staff {
		dtos = append(dtos, staffWindowDTO{StaffID: w.StaffID, ValidFrom: w.ValidFrom, ValidTo: w.ValidTo})
	}
	staffJSON, err := json.Marshal(dtos)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	return &storeProfileRow{
		StoreID: p.StoreID, StaffJSON: string(staffJSON),
		CurrencyLabel: p.CurrencyLabel, RateToBase: p.RateToBase.String(),
	}, nil
}

func fromStoreProfileRow(row storeProfileRow) (StoreProfile, error) {
	var dtos []staffWindowDTO
	if row.StaffJSON != "" {
		if err := json.Unmarshal([]byte(row.StaffJSON), &dtos); err != nil {
			return StoreProfile{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
	}
	staff := make([]StaffWindow, 0, len(dtos))
	for _, d := range dtos {
		staff = append(staff, StaffWindow{StaffID: d.StaffID, ValidFrom: d.ValidFrom, ValidTo: d.ValidTo})
	}
	rate := decimal.Zero
	if row.RateToBase != "" {
		v, err := decimal.NewFromString(row.RateToBase)
		if err != nil {
			return StoreProfile{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		rate = v
	}
	return StoreProfile{StoreID: row.StoreID, Staff: staff, CurrencyLabel: row.CurrencyLabel, RateToBase: rate}, nil
}
