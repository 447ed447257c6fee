package reporting

import "context"

// Repo is AbstractReportingRepo: a read-only contract over charge lines
// for a given store within a time window.
type Repo interface {
	FetchChargeLines(ctx context.Context, storeID uint32, window TimeRange) ([]ChargeLineRow, error)
}
