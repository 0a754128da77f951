// Package authn provides the reference JWT decode helper named in
// SPEC_FULL.md's domain stack: a thin wrapper the process uses to turn a
// bearer token into model.Claims. The contract this implements — deciding
// whether a token is valid — is an external black box per spec §1; this
// helper exists so main() has a concrete test double to wire against, not
// to replace that external validator in production.
package authn

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/notifyhub/core/internal/model"
)

func unixToTime(sec int64) time.Time { return time.Unix(sec, 0) }

// DecodeBearer parses and verifies an HS256 "Authorization: Bearer <jwt>"
// header into model.Claims.
func DecodeBearer(r *http.Request, secret []byte) (model.Claims, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return model.Claims{}, fmt.Errorf("authn: missing bearer token")
	}

	var claims model.Claims
	_, err := jwt.ParseWithClaims(token, &jwtClaims{Claims: &claims}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authn: unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return model.Claims{}, fmt.Errorf("authn: %w", err)
	}
	return claims, nil
}

// jwtClaims adapts model.Claims to jwt.Claims so the library can validate
// registered fields (exp/iat) while we keep our own struct shape.
type jwtClaims struct {
	*model.Claims
}

func (c *jwtClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(unixToTime(c.Exp)), nil
}
func (c *jwtClaims) GetIssuedAt() (*jwt.NumericDate, error) { return jwt.NewNumericDate(unixToTime(c.Iat)), nil }
func (c *jwtClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c *jwtClaims) GetIssuer() (string, error)              { return "", nil }
func (c *jwtClaims) GetSubject() (string, error)              { return c.Sub, nil }
func (c *jwtClaims) GetAudience() (jwt.ClaimStrings, error)   { return nil, nil }
