package money

import (
	"github.com/shopspring/decimal"

	"github.com/iaros/commerce-core/internal/apperror"
)

// BaseCurrency is the canonical currency all exchange rates are relative to.
const BaseCurrency = "USD"

// RateEntry is one actor's currency label and rate-to-base, as captured at
// order creation.
type RateEntry struct {
	Label string
	Rate  decimal.Decimal
}

// Snapshot maps a usr_id (buyer or seller) to its locked currency/rate.
// Every order owns its own snapshot, covering the buyer plus every distinct
// seller appearing in its lines -- that coverage is an invariant callers
// can rely on once a snapshot has been built.
type Snapshot map[uint64]RateEntry

// ToBuyerRate returns the composite rate buyer_rate/seller_rate used to
// convert a seller-currency amount into the buyer's currency.
func (s Snapshot) ToBuyerRate(buyerID, sellerID uint64) (decimal.Decimal, error) {
	buyer, ok := s[buyerID]
	if !ok {
		return decimal.Decimal{}, apperror.New(apperror.KindDataCorruption, "DataCorruption", "missing buyer in currency snapshot")
	}
	seller, ok := s[sellerID]
	if !ok {
		return decimal.Decimal{}, apperror.New(apperror.KindDataCorruption, "DataCorruption", "missing seller in currency snapshot")
	}
	if seller.Rate.IsZero() {
		return decimal.Decimal{}, apperror.New(apperror.KindDataCorruption, "DataCorruption", "seller rate is zero")
	}
	return buyer.Rate.Div(seller.Rate), nil
}

// Convert converts an amount denominated in sellerID's currency into
// buyerID's currency using the locked snapshot rates.
func (s Snapshot) Convert(amt Amount, buyerID, sellerID uint64) (Amount, error) {
	rate, err := s.ToBuyerRate(buyerID, sellerID)
	if err != nil {
		return Amount{}, err
	}
	buyer := s[buyerID]
	return NewAmount(buyer.Label, amt.Value.Mul(rate)), nil
}

// RawRate is the wire shape for a single actor's exchange-rate entry before
// it has been validated/parsed into a RateEntry.
type RawRate struct {
	Label string
	Rate  string
}

// RawSnapshotDTO is the wire shape used to build a Snapshot: a rate map
// plus the set of seller ids that the order's lines actually reference.
type RawSnapshotDTO struct {
	Rates    map[uint64]RawRate
	SellerIDs []uint64
}

// TryBuildCurrencySnapshot populates the per-order currency map for the
// buyer and every seller referenced by the order's lines.
func TryBuildCurrencySnapshot(buyerID uint64, dto RawSnapshotDTO) (Snapshot, error) {
	snap := make(Snapshot, len(dto.SellerIDs)+1)

	need := append([]uint64{buyerID}, dto.SellerIDs...)
	var missingActors []uint64
	for _, actor := range need {
		raw, ok := dto.Rates[actor]
		if !ok {
			missingActors = append(missingActors, actor)
			continue
		}
		rate, err := decimal.NewFromString(raw.Rate)
		if err != nil {
			return nil, &apperror.Error{
				Kind: apperror.KindDataCorruption,
				Code: "CorruptedExRate",
				Msg:  "label=" + raw.Label,
				Err:  err,
			}
		}
		snap[actor] = RateEntry{Label: raw.Label, Rate: rate}
	}

	if len(missingActors) > 0 {
		// Distinguish "buyer itself is missing" (MissingExRate, since the
		// buyer isn't a "seller" in the sense of the error name) from
		// "one or more sellers are missing" (MissingActorsCurrency).
		var missingSellers []uint64
		buyerMissing := false
		for _, a := range missingActors {
			if a == buyerID {
				buyerMissing = true
			} else {
				missingSellers = append(missingSellers, a)
			}
		}
		if len(missingSellers) > 0 {
			return nil, &apperror.Error{
				Kind: apperror.KindDataCorruption,
				Code: "MissingActorsCurrency",
				Msg:  missingSellersMsg(missingSellers),
			}
		}
		if buyerMissing {
			return nil, apperror.New(apperror.KindDataCorruption, "MissingExRate", "buyer currency missing")
		}
	}

	return snap, nil
}

func missingSellersMsg(ids []uint64) string {
	s := "missing sellers:"
	for _, id := range ids {
		s += " "
		s += uitoa(id)
	}
	return s
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
