package reporting

import (
	"context"

	"github.com/iaros/commerce-core/internal/apperror"
)

// Service implements the chargeline-report use-case behind
// GET /store/{store_id}/order/charges.
type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service { return &Service{Repo: repo} }

// FetchChargeLines validates the query window and delegates to the
// repository.
func (s *Service) FetchChargeLines(ctx context.Context, storeID uint32, startAfter, endBefore string) ([]ChargeLineRow, error) {
	start, err := ParseRangeHour(startAfter)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	end, err := ParseRangeHour(endBefore)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	if !end.After(start) {
		return nil, apperror.New(apperror.KindClientInput, "InvalidInput", "end_before must be after start_after")
	}
	return s.Repo.FetchChargeLines(ctx, storeID, TimeRange{StartAfter: start, EndBefore: end})
}
