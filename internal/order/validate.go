package order

import (
	"regexp"
	"strings"

	"github.com/iaros/commerce-core/internal/apperror"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateContact checks the billing/shipping contact fields a buyer
// submits on order creation: a name, at least one syntactically valid
// email, and well-formed phone numbers.
func ValidateContact(c Contact) error {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return apperror.New(apperror.KindClientInput, "InvalidInput", "contact name is required")
	}
	if len(c.Emails) == 0 {
		return apperror.New(apperror.KindClientInput, "InvalidInput", "at least one email is required")
	}
	for _, e := range c.Emails {
		if !emailRe.MatchString(e) {
			return apperror.New(apperror.KindClientInput, "InvalidInput", "malformed email: "+e)
		}
	}
	for _, p := range c.Phones {
		if p.Nation <= 0 || strings.TrimSpace(p.Number) == "" {
			return apperror.New(apperror.KindClientInput, "InvalidInput", "malformed phone number")
		}
	}
	return nil
}

// ValidateAddress checks a physical address if present; nil addresses are
// allowed for digital-only orders. Only presence/shape is checked --
// normalization and geocoding are out of scope.
func ValidateAddress(a *PhyAddr) error {
	if a == nil {
		return nil
	}
	if strings.TrimSpace(a.Country) == "" || strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" {
		return apperror.New(apperror.KindClientInput, "InvalidInput", "incomplete physical address")
	}
	return nil
}

func ValidateBilling(b Billing) error {
	if err := ValidateContact(b.Contact); err != nil {
		return err
	}
	return ValidateAddress(b.Address)
}

func ValidateShipping(s Shipping) error {
	if err := ValidateContact(s.Contact); err != nil {
		return err
	}
	return ValidateAddress(s.Address)
}
