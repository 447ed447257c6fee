package main

import (
	"strconv"

	"github.com/iaros/commerce-core/internal/apperror"
)

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

func apperror400(err error) error {
	return apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
}
