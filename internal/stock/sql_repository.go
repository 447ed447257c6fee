package stock

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iaros/commerce-core/internal/apperror"
)

// bucketRow is the GORM table model; expiry is stored as a millisecond
// RFC3339 payload while the lookup key carries the second-rounded value.
type bucketRow struct {
	StoreID   uint32 `gorm:"primaryKey;column:store_id"`
	ProductID uint64 `gorm:"primaryKey;column:product_id"`
	ExpirySec int64  `gorm:"primaryKey;column:expiry_sec"`
	ExpiresAt time.Time
	Total     int64
	Booked    int64
	Cancelled int64
}

func (bucketRow) TableName() string { return "stock_bucket" }

// SQLRepo is the production backend for Repo. Serialization of overlapping
// reserve/return calls comes from the Engine's process-local KeyLockPool;
// fetch and SaveAll run in separate statements/transactions.
type SQLRepo struct {
	db *gorm.DB
}

func NewSQLRepo(db *gorm.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) FetchEligible(ctx context.Context, pairs [][2]uint64) (map[BucketKey]*Bucket, error) {
	return r.fetch(ctx, pairs, true)
}

func (r *SQLRepo) FetchAny(ctx context.Context, pairs [][2]uint64) (map[BucketKey]*Bucket, error) {
	return r.fetch(ctx, pairs, false)
}

func (r *SQLRepo) fetch(ctx context.Context, pairs [][2]uint64, eligibleOnly bool) (map[BucketKey]*Bucket, error) {
	if len(pairs) == 0 {
		return map[BucketKey]*Bucket{}, nil
	}
	query := r.db.WithContext(ctx)
	var rows []bucketRow
	for i, p := range pairs {
		clause := r.db.Where("store_id = ? AND product_id = ?", uint32(p[0]), p[1])
		if i == 0 {
			query = query.Where(clause)
		} else {
			query = query.Or(clause)
		}
	}
	if eligibleOnly {
		query = query.Where("expiry_sec >= ?", time.Now().Unix())
	}
	// FOR UPDATE runs in this statement's own implicit transaction, so the
	// row locks are released when the fetch returns.
	if err := query.Clauses(clause.Locking{Strength: "UPDATE"}).Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	out := make(map[BucketKey]*Bucket, len(rows))
	for _, row := range rows {
		key := BucketKey{StoreID: row.StoreID, ProductID: row.ProductID, ExpirySec: row.ExpirySec}
		out[key] = &Bucket{
			Key: key, Total: row.Total, Booked: row.Booked, Cancelled: row.Cancelled, ExpiresAt: row.ExpiresAt,
		}
	}
	return out, nil
}

func (r *SQLRepo) SaveAll(ctx context.Context, buckets map[BucketKey]*Bucket) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range buckets {
			row := bucketRow{
				StoreID: b.Key.StoreID, ProductID: b.Key.ProductID, ExpirySec: b.Key.ExpirySec,
				ExpiresAt: b.ExpiresAt, Total: b.Total, Booked: b.Booked, Cancelled: b.Cancelled,
			}
			if err := tx.Where("store_id = ? AND product_id = ? AND expiry_sec = ?",
				row.StoreID, row.ProductID, row.ExpirySec).
				Assign(row).FirstOrCreate(&bucketRow{}).Error; err != nil {
				return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
			}
		}
		return nil
	})
}
