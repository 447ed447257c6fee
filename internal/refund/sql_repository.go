package refund

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iaros/commerce-core/internal/apperror"
)

type syncedRequestRow struct {
	OrderID      string    `gorm:"primaryKey;column:order_id"`
	StoreID      uint32    `gorm:"primaryKey"`
	ProductID    uint64    `gorm:"primaryKey"`
	AttrSetSeq   uint16    `gorm:"primaryKey"`
	TimeIssued   time.Time `gorm:"primaryKey"`
	RequestedQty int64
}

func (syncedRequestRow) TableName() string { return "refund_req_sync" }

type resolutionRow struct {
	OrderID        string `gorm:"primaryKey;column:order_id"`
	StoreID        uint32 `gorm:"primaryKey"`
	ProductID      uint64 `gorm:"primaryKey"`
	AttrSetSeq     uint16 `gorm:"primaryKey"`
	TimeIssued     time.Time `gorm:"primaryKey"`
	ResolvedAt     time.Time `gorm:"primaryKey"`
	ApprovedQty    int64
	MerchantLabel  string
	MerchantValue  string
	BuyerLabel     string
	BuyerValue     string
	RefundID       string
}

func (resolutionRow) TableName() string { return "refund_req_resolution" }

// SQLRepo is the GORM/Postgres production backend for Repo.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) MergeSyncedRequests(ctx context.Context, reqs []SyncedRequest) (int, int, error) {
	if len(reqs) == 0 {
		return 0, 0, nil
	}
	rows := make([]syncedRequestRow, 0, len(reqs))
	orders := make(map[string]struct{})
	for _, req := range reqs {
		rows = append(rows, syncedRequestRow{
			OrderID: req.Key.OrderID, StoreID: req.Key.Pid.StoreID, ProductID: req.Key.Pid.ProductID,
			AttrSetSeq: req.Key.Pid.AttrSetSeq, TimeIssued: req.Key.TimeIssued, RequestedQty: req.RequestedQty,
		})
		orders[req.Key.OrderID] = struct{}{}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "store_id"}, {Name: "product_id"}, {Name: "attr_set_seq"}, {Name: "time_issued"}},
		DoUpdates: clause.AssignmentColumns([]string{"requested_qty"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, 0, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return len(orders), len(rows), nil
}

func (r *SQLRepo) FetchSyncedRequest(ctx context.Context, key RequestKey) (SyncedRequest, bool, error) {
	var row syncedRequestRow
	err := r.db.WithContext(ctx).Where(
		"order_id = ? AND store_id = ? AND product_id = ? AND attr_set_seq = ? AND time_issued = ?",
		key.OrderID, key.Pid.StoreID, key.Pid.ProductID, key.Pid.AttrSetSeq, key.TimeIssued,
	).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return SyncedRequest{}, false, nil
	} else if err != nil {
		return SyncedRequest{}, false, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return SyncedRequest{Key: key, RequestedQty: row.RequestedQty}, true, nil
}

func (r *SQLRepo) FetchPriorApprovedQty(ctx context.Context, key RequestKey) (int64, error) {
	var total int64
	row := r.db.WithContext(ctx).Model(&resolutionRow{}).Where(
		"order_id = ? AND store_id = ? AND product_id = ? AND attr_set_seq = ? AND time_issued = ?",
		key.OrderID, key.Pid.StoreID, key.Pid.ProductID, key.Pid.AttrSetSeq, key.TimeIssued,
	).Select("COALESCE(SUM(approved_qty), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return total, nil
}

func (r *SQLRepo) SaveResolution(ctx context.Context, res Resolution) error {
	row := resolutionRow{
		OrderID: res.Key.OrderID, StoreID: res.Key.Pid.StoreID, ProductID: res.Key.Pid.ProductID,
		AttrSetSeq: res.Key.Pid.AttrSetSeq, TimeIssued: res.Key.TimeIssued, ResolvedAt: res.ResolvedAt,
		ApprovedQty: res.ApprovedQty, MerchantLabel: res.AmountMerchant.Label, MerchantValue: res.AmountMerchant.Value.String(),
		BuyerLabel: res.AmountBuyer.Label, BuyerValue: res.AmountBuyer.Value.String(), RefundID: res.RefundID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}
