// Package apperror defines the closed error taxonomy shared by every
// service. Adapters (DB, RPC, PSP) convert low-level failures into one of
// these kinds; use-cases map kinds onto use-case-specific detail; the HTTP
// layer maps kinds onto status codes. Nothing below this layer should leak
// a raw driver error to a caller.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories.
type Kind string

const (
	KindClientInput     Kind = "client_input"
	KindDomainState     Kind = "domain_state"
	KindDataCorruption  Kind = "data_corruption"
	KindTransientInfra  Kind = "transient_infra"
	KindProgrammer      Kind = "programmer"
)

// Error is the common envelope. Code is a short machine-readable tag
// ("num_charges_exceed", "DuplicateReturn", ...); Fields carries structured
// per-field validation detail when applicable.
type Error struct {
	Kind   Kind
	Code   string
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func Wrap(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: err.Error(), Err: err}
}

func WithFields(kind Kind, code, msg string, fields map[string]string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Fields: fields}
}

// Is lets callers do errors.Is(err, apperror.ErrNotFound) style checks
// against sentinel instances that only differ by Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Sentinel codes referenced across packages.
var (
	ErrNotExist           = &Error{Kind: KindClientInput, Code: "NotExist"}
	ErrQuotaExceeded      = &Error{Kind: KindClientInput, Code: "QuotaExceeded"}
	ErrReservationExpired = &Error{Kind: KindClientInput, Code: "ReservationExpired"}
	ErrInvalidQuantity    = &Error{Kind: KindClientInput, Code: "InvalidQuantity"}
	ErrOmitted            = &Error{Kind: KindClientInput, Code: "Omitted"}
	ErrDuplicateReturn    = &Error{Kind: KindClientInput, Code: "DuplicateReturn"}
	ErrWarrantyExpired    = &Error{Kind: KindClientInput, Code: "WarrantyExpired"}
	ErrQtyLimitExceed     = &Error{Kind: KindClientInput, Code: "QtyLimitExceed"}
	ErrOwnerMismatch      = &Error{Kind: KindClientInput, Code: "OwnerMismatch"}
	ErrInvalidInput       = &Error{Kind: KindClientInput, Code: "InvalidInput"}

	ErrOutOfStock  = &Error{Kind: KindClientInput, Code: "OutOfStock"}
	ErrNotEnough   = &Error{Kind: KindClientInput, Code: "NotEnough"}

	ErrChargeStatus         = &Error{Kind: KindDomainState, Code: "ChargeStatus"}
	ErrAmountNotEnough      = &Error{Kind: KindDomainState, Code: "AmountNotEnough"}
	ErrRefundRequestNotFound = &Error{Kind: KindDomainState, Code: "RefundRequestNotFound"}
	ErrMerchantPermissionDenied = &Error{Kind: KindDomainState, Code: "MerchantPermissionDenied"}
	ErrOrderAlreadySyncing  = &Error{Kind: KindDomainState, Code: "OrderAlreadySyncing"}
	ErrInvalid3partyParams  = &Error{Kind: KindDomainState, Code: "Invalid3partyParams"}

	ErrCurrencyPrecision   = &Error{Kind: KindDataCorruption, Code: "CurrencyPrecision"}
	ErrDataCorruption      = &Error{Kind: KindDataCorruption, Code: "DataCorruption"}
	ErrMissingActorsCurrency = &Error{Kind: KindDataCorruption, Code: "MissingActorsCurrency"}
	ErrMissingExRate       = &Error{Kind: KindDataCorruption, Code: "MissingExRate"}
	ErrCorruptedExRate     = &Error{Kind: KindDataCorruption, Code: "CorruptedExRate"}

	ErrDataStore        = &Error{Kind: KindTransientInfra, Code: "DataStore"}
	ErrRpcRemoteUnavail = &Error{Kind: KindTransientInfra, Code: "RpcRemoteUnavail"}
	ErrExternalProcessor = &Error{Kind: KindTransientInfra, Code: "ExternalProcessor"}
	ErrChargeIdDecode   = &Error{Kind: KindClientInput, Code: "ChargeIdDecode"}
)

// AsError extracts the first *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
