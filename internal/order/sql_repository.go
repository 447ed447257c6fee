package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

// orderRow is the header table row. Billing/shipping contacts and the
// currency snapshot are stored as JSON columns, flattening nested value
// objects into a single jsonb column rather than modeling every nested
// struct as its own join table.
type orderRow struct {
	OrderID      []byte `gorm:"primaryKey;column:order_id"`
	OwnerID      uint64
	CreateTime   time.Time
	BillingJSON  string `gorm:"column:billing_json"`
	ShippingJSON string `gorm:"column:shipping_json"`
	SnapshotJSON string `gorm:"column:snapshot_json"`
	NumCharges   int32
}

func (orderRow) TableName() string { return "order_header" }

type lineRow struct {
	OrderID        []byte `gorm:"primaryKey;column:order_id"`
	StoreID        uint32 `gorm:"primaryKey;column:store_id"`
	ProductID      uint64 `gorm:"primaryKey;column:product_id"`
	AttrSetSeq     uint16 `gorm:"primaryKey;column:attr_set_seq"`
	PriceLabel     string
	PriceValue     string
	ReservedQty    int64
	PaidQty        int64
	PaidLastUpdate *time.Time
	ReservedUntil  time.Time
	WarrantyUntil  time.Time
	ExtraJSON      string `gorm:"column:extra_json"`
}

func (lineRow) TableName() string { return "order_line" }

// SQLRepo is the GORM/Postgres production backend for Repo.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Create(ctx context.Context, ord *Order) error {
	hdr, lines, err := toRows(ord)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(hdr).Error; err != nil {
			return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
		}
		if len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
			}
		}
		return nil
	})
}

func (r *SQLRepo) FetchByID(ctx context.Context, ownerID uint64, id ID) (*Order, error) {
	var hdr orderRow
	err := r.db.WithContext(ctx).Where("order_id = ? AND owner_id = ?", id[:], ownerID).First(&hdr).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.ErrNotExist
	} else if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	var lines []lineRow
	if err := r.db.WithContext(ctx).Where("order_id = ?", id[:]).Find(&lines).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return fromRows(hdr, lines)
}

func (r *SQLRepo) FetchByIDUnscoped(ctx context.Context, id ID) (*Order, error) {
	var hdr orderRow
	err := r.db.WithContext(ctx).Where("order_id = ?", id[:]).First(&hdr).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.ErrNotExist
	} else if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	var lines []lineRow
	if err := r.db.WithContext(ctx).Where("order_id = ?", id[:]).Find(&lines).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return fromRows(hdr, lines)
}

func (r *SQLRepo) UpdateLinesPayment(ctx context.Context, id ID, updates []LinePaymentUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&lineRow{}).
				Where("order_id = ? AND store_id = ? AND product_id = ? AND attr_set_seq = ?",
					id[:], u.Pid.StoreID, u.Pid.ProductID, u.Pid.AttrSetSeq).
				Updates(map[string]any{
					"paid_qty":         gorm.Expr("paid_qty + ?", u.PaidQtyDelta),
					"paid_last_update": u.PaidAt,
				})
			if res.Error != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperror.ErrNotExist
			}
		}
		return nil
	})
}

func (r *SQLRepo) UpdateContacts(ctx context.Context, ownerID uint64, id ID, billing Billing, shipping Shipping) error {
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	res := r.db.WithContext(ctx).Model(&orderRow{}).
		Where("order_id = ? AND owner_id = ?", id[:], ownerID).
		Updates(map[string]any{"billing_json": string(billingJSON), "shipping_json": string(shippingJSON)})
	if res.Error != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotExist
	}
	return nil
}

func (r *SQLRepo) IncrementNumCharges(ctx context.Context, id ID) error {
	res := r.db.WithContext(ctx).Model(&orderRow{}).Where("order_id = ?", id[:]).
		Update("num_charges", gorm.Expr("num_charges + 1"))
	if res.Error != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotExist
	}
	return nil
}

func (r *SQLRepo) FetchReservedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	var lines []lineRow
	q := r.db.WithContext(ctx).
		Where("reserved_until < ? AND paid_qty < reserved_qty", cutoff).
		Order("reserved_until asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&lines).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	seen := make(map[string]struct{})
	var out []Order
	for _, l := range lines {
		key := string(l.OrderID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		var hdr orderRow
		if err := r.db.WithContext(ctx).Where("order_id = ?", l.OrderID).First(&hdr).Error; err != nil {
			return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
		}
		var allLines []lineRow
		if err := r.db.WithContext(ctx).Where("order_id = ?", l.OrderID).Find(&allLines).Error; err != nil {
			return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
		}
		ord, err := fromRows(hdr, allLines)
		if err != nil {
			return nil, err
		}
		out = append(out, *ord)
	}
	return out, nil
}

func (r *SQLRepo) FetchLatestByOwner(ctx context.Context, ownerID uint64) (*Order, error) {
	var hdr orderRow
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("create_time desc").First(&hdr).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.ErrNotExist
	} else if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	var lines []lineRow
	if err := r.db.WithContext(ctx).Where("order_id = ?", hdr.OrderID).Find(&lines).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return fromRows(hdr, lines)
}

func toRows(ord *Order) (*orderRow, []lineRow, error) {
	billingJSON, err := json.Marshal(ord.Header.Billing)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	shippingJSON, err := json.Marshal(ord.Header.Shipping)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	snapJSON, err := json.Marshal(ord.Header.CurrencySnapshot)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	hdr := &orderRow{
		OrderID: ord.Header.OrderID[:], OwnerID: ord.Header.OwnerID, CreateTime: ord.Header.CreateTime,
		BillingJSON: string(billingJSON), ShippingJSON: string(shippingJSON), SnapshotJSON: string(snapJSON),
		NumCharges: ord.Header.NumCharges,
	}
	lines := make([]lineRow, 0, len(ord.Lines))
	for _, l := range ord.Lines {
		extraJSON, err := json.Marshal(l.AttributePriceSnapshot)
		if err != nil {
			return nil, nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
		}
		lines = append(lines, lineRow{
			OrderID: ord.Header.OrderID[:], StoreID: l.Pid.StoreID, ProductID: l.Pid.ProductID, AttrSetSeq: l.Pid.AttrSetSeq,
			PriceLabel: l.PriceUnit.Label, PriceValue: l.PriceUnit.Value.String(),
			ReservedQty: l.ReservedQty, PaidQty: l.PaidQty, PaidLastUpdate: l.PaidLastUpdate,
			ReservedUntil: l.ReservedUntil, WarrantyUntil: l.WarrantyUntil, ExtraJSON: string(extraJSON),
		})
	}
	return hdr, lines, nil
}

func fromRows(hdr orderRow, lines []lineRow) (*Order, error) {
	var billing Billing
	var shipping Shipping
	var snap money.Snapshot
	if err := json.Unmarshal([]byte(hdr.BillingJSON), &billing); err != nil {
		return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	if err := json.Unmarshal([]byte(hdr.ShippingJSON), &shipping); err != nil {
		return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	if err := json.Unmarshal([]byte(hdr.SnapshotJSON), &snap); err != nil {
		return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	var id ID
	copy(id[:], hdr.OrderID)
	ord := &Order{Header: Header{
		OrderID: id, OwnerID: hdr.OwnerID, CreateTime: hdr.CreateTime,
		Billing: billing, Shipping: shipping, CurrencySnapshot: snap, NumCharges: hdr.NumCharges,
	}}
	for _, row := range lines {
		var extra []catalog.AttrCharge
		if err := json.Unmarshal([]byte(row.ExtraJSON), &extra); err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		val, err := decimal.NewFromString(row.PriceValue)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		amt := money.NewAmount(row.PriceLabel, val)
		ord.Lines = append(ord.Lines, Line{
			Pid:            catalog.Pid{StoreID: row.StoreID, ProductID: row.ProductID, AttrSetSeq: row.AttrSetSeq},
			PriceUnit:      amt,
			ReservedQty:    row.ReservedQty,
			PaidQty:        row.PaidQty,
			PaidLastUpdate: row.PaidLastUpdate,
			ReservedUntil:  row.ReservedUntil,
			WarrantyUntil:  row.WarrantyUntil,
			AttributePriceSnapshot: extra,
		})
	}
	return ord, nil
}
