package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
)

// priceRow is the GORM table model for a price-model entry: a flat struct
// per table with an explicit TableName().
type priceRow struct {
	ID         uint64 `gorm:"primaryKey"`
	StoreID    uint32 `gorm:"index:idx_price_pid"`
	ProductID  uint64 `gorm:"index:idx_price_pid"`
	AttrSetSeq uint16 `gorm:"index:idx_price_pid"`
	Currency   string
	Price      string
	StartAfter time.Time
	EndBefore  time.Time
	Extra      string // JSON-encoded []AttrCharge
}

func (priceRow) TableName() string { return "product_price_model" }

type policyRow struct {
	ID            uint64 `gorm:"primaryKey"`
	StoreID       uint32 `gorm:"index:idx_policy_product"`
	ProductID     uint64 `gorm:"index:idx_policy_product"`
	WarrantyHours int64
	AutoCancelSec int64
	MinNumRsv     int32
	MaxNumRsv     int32
}

func (policyRow) TableName() string { return "product_policy" }

// SQLPriceRepo is the production backend for PriceRepo, backed by GORM over
// Postgres.
type SQLPriceRepo struct {
	db *gorm.DB
}

func NewSQLPriceRepo(db *gorm.DB) *SQLPriceRepo { return &SQLPriceRepo{db: db} }

func (r *SQLPriceRepo) FetchByPids(ctx context.Context, storeID uint32, pids []Pid) ([]PriceModel, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	var rows []priceRow
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID)
	// Build an OR-of-AND filter across the pid triple; a small number of
	// pids per request makes this cheaper than a join against a values list.
	tx := q.Session(&gorm.Session{})
	for i, pid := range pids {
		clause := tx.Where("product_id = ? AND attr_set_seq = ?", pid.ProductID, pid.AttrSetSeq)
		if i == 0 {
			q = q.Where(clause)
		} else {
			q = q.Or(clause)
		}
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make([]PriceModel, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (row priceRow) toModel() (PriceModel, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return PriceModel{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	var extra []AttrCharge
	if row.Extra != "" {
		if err := json.Unmarshal([]byte(row.Extra), &extra); err != nil {
			return PriceModel{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
	}
	return PriceModel{
		Pid:        Pid{StoreID: row.StoreID, ProductID: row.ProductID, AttrSetSeq: row.AttrSetSeq},
		Currency:   row.Currency,
		Price:      price,
		StartAfter: row.StartAfter,
		EndBefore:  row.EndBefore,
		Extra:      extra,
	}, nil
}

func (m PriceModel) toRow() (priceRow, error) {
	extraJSON, err := json.Marshal(m.Extra)
	if err != nil {
		return priceRow{}, apperror.Wrap(apperror.KindProgrammer, "MarshalExtra", err)
	}
	return priceRow{
		StoreID:    m.Pid.StoreID,
		ProductID:  m.Pid.ProductID,
		AttrSetSeq: m.Pid.AttrSetSeq,
		Currency:   m.Currency,
		Price:      m.Price.String(),
		StartAfter: m.StartAfter,
		EndBefore:  m.EndBefore,
		Extra:      string(extraJSON),
	}, nil
}

func (r *SQLPriceRepo) Save(ctx context.Context, storeID uint32, set SaveSet) error {
	if err := set.CheckDisjoint(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range append(append([]PriceModel{}, set.Updating...), set.Creating...) {
			row, err := m.toRow()
			if err != nil {
				return err
			}
			if err := tx.Where(
				"store_id = ? AND product_id = ? AND attr_set_seq = ?",
				row.StoreID, row.ProductID, row.AttrSetSeq,
			).Assign(row).FirstOrCreate(&priceRow{}).Error; err != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
			}
		}
		return nil
	})
}

func (r *SQLPriceRepo) DeleteSubset(ctx context.Context, storeID uint32, pids []Pid) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pid := range pids {
			if err := tx.Where(
				"store_id = ? AND product_id = ? AND attr_set_seq = ?",
				storeID, pid.ProductID, pid.AttrSetSeq,
			).Delete(&priceRow{}).Error; err != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
			}
		}
		return nil
	})
}

func (r *SQLPriceRepo) DeleteAll(ctx context.Context, storeID uint32) error {
	if err := r.db.WithContext(ctx).Where("store_id = ?", storeID).Delete(&priceRow{}).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

// SQLPolicyRepo is the production backend for PolicyRepo.
type SQLPolicyRepo struct {
	db *gorm.DB
}

func NewSQLPolicyRepo(db *gorm.DB) *SQLPolicyRepo { return &SQLPolicyRepo{db: db} }

func (r *SQLPolicyRepo) FetchByProducts(ctx context.Context, storeID uint32, productIDs []uint64) ([]Policy, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var rows []policyRow
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make([]Policy, 0, len(rows))
	for _, row := range rows {
		out = append(out, Policy{
			StoreID:       row.StoreID,
			ProductID:     row.ProductID,
			WarrantyHours: row.WarrantyHours,
			AutoCancelSec: row.AutoCancelSec,
			MinNumRsv:     row.MinNumRsv,
			MaxNumRsv:     row.MaxNumRsv,
		})
	}
	return out, nil
}

func (r *SQLPolicyRepo) Save(ctx context.Context, storeID uint32, policies []Policy) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range policies {
			row := policyRow{
				StoreID:       storeID,
				ProductID:     p.ProductID,
				WarrantyHours: p.WarrantyHours,
				AutoCancelSec: p.AutoCancelSec,
				MinNumRsv:     p.MinNumRsv,
				MaxNumRsv:     p.MaxNumRsv,
			}
			if err := tx.Where("store_id = ? AND product_id = ?", storeID, p.ProductID).
				Assign(row).FirstOrCreate(&policyRow{}).Error; err != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
			}
		}
		return nil
	})
}

func (r *SQLPolicyRepo) DeleteSubset(ctx context.Context, storeID uint32, productIDs []uint64) error {
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Delete(&policyRow{}).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

func (r *SQLPolicyRepo) DeleteAll(ctx context.Context, storeID uint32) error {
	if err := r.db.WithContext(ctx).Where("store_id = ?", storeID).Delete(&policyRow{}).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}
