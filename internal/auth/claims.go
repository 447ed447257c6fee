// Package auth implements bearer-JWT authentication and quota/permission
// authorization: claims include {profile, iat, exp, aud, perms[], quota[]}.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Quota is one (code, limit) pair from the token's quota claim.
type Quota struct {
	Code  string `json:"code"`
	Limit int32  `json:"limit"`
}

// Permission codes recognized by this system's authorization checks.
const (
	PermCanCreateCharge         = "can_create_charge"
	PermCanCreateReturnReq      = "can_create_return_req"
	PermCanOnboardMerchant      = "can_onboard_merchant"
	PermCanUpdateChargeProgress = "can_update_charge_progress"
	PermCanCaptureCharge        = "can_capture_charge"
	PermCanFinalizeRefund       = "can_finalize_refund"
)

// Quota codes recognized by this system's authorization checks.
const (
	QuotaNumOrderLines        = "NumOrderLines"
	QuotaNumChargesPerOrder   = "NumChargesPerOrder"
	QuotaNumSubChargesPerOrder = "NumSubChargesPerOrder"
)

// Claims is the JWT claim set this system issues and verifies.
type Claims struct {
	jwt.RegisteredClaims
	Profile uint64  `json:"profile"`
	Perms   []string `json:"perms"`
	Quota   []Quota  `json:"quota"`
}

// HasPerm reports whether perm is present in the token's perms claim.
func (c Claims) HasPerm(perm string) bool {
	for _, p := range c.Perms {
		if p == perm {
			return true
		}
	}
	return false
}

// QuotaFor returns the limit for code and whether it was present.
func (c Claims) QuotaFor(code string) (int32, bool) {
	for _, q := range c.Quota {
		if q.Code == code {
			return q.Limit, true
		}
	}
	return 0, false
}

// Signer issues and verifies HS256-signed Claims.
type Signer struct {
	key []byte
}

func NewSigner(key string) *Signer { return &Signer{key: []byte(key)} }

// Issue mints a signed token for profile with the given perms/quota and
// a ttl-bounded expiry.
func (s *Signer) Issue(profile uint64, aud string, perms []string, quota []Quota, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{aud},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Profile: profile, Perms: perms, Quota: quota,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Verify parses and validates a bearer token, returning its claims.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
