package main

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/money"
)

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func apperror400(err error) error {
	return apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
}

func quotaExceeded() error {
	return apperror.ErrQuotaExceeded
}

func parseAmount(label, raw string) (money.Amount, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Amount{}, apperror400(err)
	}
	amt := money.NewAmount(label, v)
	if err := amt.CheckPrecision(); err != nil {
		return money.Amount{}, err
	}
	return amt, nil
}
