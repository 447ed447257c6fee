package charge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
)

// chargeRow stores the 3rd-party method as discriminated columns rather
// than a polymorphic blob, so "method_kind=stripe AND session IS NULL" can
// be caught by a production NOT NULL constraint rather than only by this
// package's checkValid.
type chargeRow struct {
	ChargeID             []byte `gorm:"primaryKey;column:charge_id"`
	OrderID              []byte `gorm:"column:order_id;index"`
	BuyerID              uint64
	State                string
	MethodKind           string
	StripeSession        string
	StripePaymentIntent  string
	StripeTransferGroup  string
	LinesJSON            string `gorm:"column:lines_json"`
	CreateTime           time.Time
	ProcessorAcceptedAt  *time.Time
	ProcessorCompletedAt *time.Time
	OrderAppSyncedAt     *time.Time
}

func (chargeRow) TableName() string { return "charge" }

// chargeLineReportRow mirrors reporting.chargeLineReportRow: a denormalized
// one-row-per-line view the charge SQLRepo maintains alongside its own
// charge rows, so the reporting package can query by store without
// unpacking every charge's lines_json.
type chargeLineReportRow struct {
	OrderID         string `gorm:"column:order_id;index"`
	ChargeID        string `gorm:"column:charge_id;index"`
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

type lineDTO struct {
	Pid            catalog.Pid
	Qty            int64
	AmountOrigLabel string
	AmountOrigValue string
	MerchantID     uint64
}

// SQLRepo is the GORM/Postgres production backend for Repo.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Create(ctx context.Context, c *Charge) error {
	if err := c.CheckSaveable(); err != nil {
		return err
	}
	row, err := toChargeRow(c)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	if err := r.writeReportLines(ctx, c); err != nil {
		return err
	}
	return nil
}

func (r *SQLRepo) Update(ctx context.Context, c *Charge) error {
	if err := c.CheckSaveable(); err != nil {
		return err
	}
	row, err := toChargeRow(c)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Where("charge_id = ?", row.ChargeID).Save(row)
	if res.Error != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotExist
	}
	if err := r.writeReportLines(ctx, c); err != nil {
		return err
	}
	return nil
}

// writeReportLines upserts charge_line's denormalized rows so a state
// transition (e.g. reaching StateOrderAppSynced) is visible to reporting
// without reporting needing to unpack lines_json itself. Keyed on
// (charge_id, product_id, attr_set_seq) since one charge never repeats a
// pid across its lines.
func (r *SQLRepo) writeReportLines(ctx context.Context, c *Charge) error {
	for _, l := range c.Lines {
		row := chargeLineReportRow{
			OrderID: c.OrderID.String(), ChargeID: c.ChargeID.String(),
			StoreID: l.Pid.StoreID, ProductID: l.Pid.ProductID, AttrSetSeq: l.Pid.AttrSetSeq,
			Qty: l.Qty, AmountOrigLabel: l.AmountOrig.Label, AmountOrigValue: l.AmountOrig.Value.String(),
			State: string(c.State), CreateTime: c.CreateTime,
		}
		res := r.db.WithContext(ctx).
			Where("charge_id = ? AND product_id = ? AND attr_set_seq = ?", row.ChargeID, row.ProductID, row.AttrSetSeq).
			Updates(&row)
		if res.Error != nil {
			return apperror.Wrap(apperror.KindTransientInfra, "DataStore", res.Error)
		}
		if res.RowsAffected == 0 {
			if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
			}
		}
	}
	return nil
}

func (r *SQLRepo) FetchByID(ctx context.Context, id ID) (*Charge, error) {
	var row chargeRow
	err := r.db.WithContext(ctx).Where("charge_id = ?", id[:]).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.ErrNotExist
	} else if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return fromChargeRow(row)
}

func (r *SQLRepo) FetchCompletedLines(ctx context.Context, orderID order.ID) ([]Line, error) {
	var rows []chargeRow
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND state = ?", orderID[:], string(StateOrderAppSynced)).
		Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	var out []Line
	for _, row := range rows {
		c, err := fromChargeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Lines...)
	}
	return out, nil
}

func (r *SQLRepo) FetchByOrderID(ctx context.Context, orderID order.ID) ([]Charge, error) {
	var rows []chargeRow
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID[:]).Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make([]Charge, 0, len(rows))
	for _, row := range rows {
		c, err := fromChargeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *SQLRepo) FetchLastChargeTime(ctx context.Context, orderID order.ID) (time.Time, bool, error) {
	var row chargeRow
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID[:]).Order("create_time desc").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	} else if err != nil {
		return time.Time{}, false, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return row.CreateTime, true, nil
}

func toChargeRow(c *Charge) (*chargeRow, error) {
	lineDTOs := make([]lineDTO, 0, len(c.Lines))
	for _, l := range c.Lines {
		lineDTOs = append(lineDTOs, lineDTO{
			Pid: l.Pid, Qty: l.Qty, MerchantID: l.MerchantID,
			AmountOrigLabel: l.AmountOrig.Label, AmountOrigValue: l.AmountOrig.Value.String(),
		})
	}
	linesJSON, err := json.Marshal(lineDTOs)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindProgrammer, "InvalidInput", err)
	}
	row := &chargeRow{
		ChargeID: c.ChargeID[:], OrderID: c.OrderID[:], BuyerID: c.BuyerID, State: string(c.State),
		LinesJSON: string(linesJSON), CreateTime: c.CreateTime,
		ProcessorAcceptedAt: c.ProcessorAcceptedAt, ProcessorCompletedAt: c.ProcessorCompletedAt,
		OrderAppSyncedAt: c.OrderAppSyncedAt,
	}
	switch m := c.Method.(type) {
	case Stripe:
		row.MethodKind = "stripe"
		row.StripeSession = m.Session
		row.StripePaymentIntent = m.PaymentIntent
		row.StripeTransferGroup = m.TransferGroup
	default:
		row.MethodKind = "unknown"
	}
	return row, nil
}

func fromChargeRow(row chargeRow) (*Charge, error) {
	var dtos []lineDTO
	if err := json.Unmarshal([]byte(row.LinesJSON), &dtos); err != nil {
		return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	lines := make([]Line, 0, len(dtos))
	for _, d := range dtos {
		v, err := decimal.NewFromString(d.AmountOrigValue)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		lines = append(lines, Line{
			Pid: d.Pid, Qty: d.Qty, MerchantID: d.MerchantID,
			AmountOrig: money.NewAmount(d.AmountOrigLabel, v),
		})
	}
	var cid ID
	copy(cid[:], row.ChargeID)
	var oid order.ID
	copy(oid[:], row.OrderID)

	var method Method3party = Unknown{}
	if row.MethodKind == "stripe" {
		method = Stripe{Session: row.StripeSession, PaymentIntent: row.StripePaymentIntent, TransferGroup: row.StripeTransferGroup}
	}

	return &Charge{
		ChargeID: cid, OrderID: oid, BuyerID: row.BuyerID, State: State(row.State), Method: method, Lines: lines,
		CreateTime: row.CreateTime, ProcessorAcceptedAt: row.ProcessorAcceptedAt,
		ProcessorCompletedAt: row.ProcessorCompletedAt, OrderAppSyncedAt: row.OrderAppSyncedAt,
	}, nil
}
