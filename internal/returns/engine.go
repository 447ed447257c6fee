package returns

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iaros/commerce-core/internal/catalog"
)

func decimalFromInt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// FilterRequests implements filter_requests:
//
//	filter_requests(dto[], saved_lines, saved_returns) -> Ok(new_returns[]) | Err(per_line_reasons[])
//
// savedLines and savedReturns are both keyed by pid, scoped to a single
// order (the caller loads them for one order_id before calling). Requests
// within the same call are checked against each other for duplicate rounded
// times too, not just against what's already saved.
func FilterRequests(
	now time.Time,
	roundWindow time.Duration,
	orderID string,
	requests []Request,
	savedLines map[catalog.Pid]SavedLine,
	savedReturns map[catalog.Pid]OrderReturnModel,
) ([]OrderReturnModel, []LineError) {
	var errs []LineError
	accumulated := make(map[catalog.Pid]*OrderReturnModel)
	returnedSoFar := make(map[catalog.Pid]int64)
	for pid, m := range savedReturns {
		returnedSoFar[pid] = m.TotalReturnedQty()
	}

	for _, req := range requests {
		line, ok := savedLines[req.Pid]
		if !ok {
			errs = append(errs, LineError{Pid: req.Pid, Code: "NotExist"})
			continue
		}
		if now.After(line.WarrantyUntil) {
			errs = append(errs, LineError{Pid: req.Pid, Code: "WarrantyExpired"})
			continue
		}
		if req.Qty+returnedSoFar[req.Pid] > line.PaidQty {
			errs = append(errs, LineError{Pid: req.Pid, Code: "QtyLimitExceed"})
			continue
		}

		rounded := RoundTime(req.RequestTime, roundWindow)
		if saved, ok := savedReturns[req.Pid]; ok {
			if _, collide := saved.Entries[rounded]; collide {
				errs = append(errs, LineError{Pid: req.Pid, Code: "DuplicateReturn"})
				continue
			}
		}
		model, ok := accumulated[req.Pid]
		if !ok {
			model = &OrderReturnModel{OrderID: orderID, Pid: req.Pid, Entries: make(map[int64]ReturnEntry)}
			accumulated[req.Pid] = model
		}
		if _, collide := model.Entries[rounded]; collide {
			errs = append(errs, LineError{Pid: req.Pid, Code: "DuplicateReturn"})
			continue
		}

		total := req.RefundPerUnit
		total.Value = total.Value.Mul(decimalFromInt(req.Qty))
		model.Entries[rounded] = ReturnEntry{Qty: req.Qty, RefundPerUnit: req.RefundPerUnit, RefundTotal: total}
		returnedSoFar[req.Pid] += req.Qty
	}

	if len(errs) > 0 {
		return nil, errs
	}

	out := make([]OrderReturnModel, 0, len(accumulated))
	for _, m := range accumulated {
		out = append(out, *m)
	}
	return out, nil
}
