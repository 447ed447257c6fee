package catalog

import (
	"context"

	"github.com/iaros/commerce-core/internal/apperror"
)

var errOverlap = apperror.New(apperror.KindClientInput, "InvalidInput", "pid present in both updating and creating sets")

// PriceRepo is the narrow repository contract for per-store price
// model-sets. Fetches always return an entire model-set per store,
// filtered by the requested pid list.
type PriceRepo interface {
	FetchByPids(ctx context.Context, storeID uint32, pids []Pid) ([]PriceModel, error)
	Save(ctx context.Context, storeID uint32, set SaveSet) error
	DeleteSubset(ctx context.Context, storeID uint32, pids []Pid) error
	DeleteAll(ctx context.Context, storeID uint32) error
}

// PolicyRepo is the narrow repository contract for product policies.
type PolicyRepo interface {
	FetchByProducts(ctx context.Context, storeID uint32, productIDs []uint64) ([]Policy, error)
	Save(ctx context.Context, storeID uint32, policies []Policy) error
	DeleteSubset(ctx context.Context, storeID uint32, productIDs []uint64) error
	DeleteAll(ctx context.Context, storeID uint32) error
}
