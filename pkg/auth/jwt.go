// Package auth establishes the acting address for API requests from a
// signed bearer token. The token only identifies the actor to the API
// layer; on-chain authorization is still enforced by the ledger itself.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
	"github.com/hatchmark/hatchmark/pkg/ledger"
)

// Verifier validates HMAC-signed bearer tokens carrying the actor address
// in the subject claim.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a new token verifier
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// ParseActor validates the token and returns the actor address from its
// subject claim.
func (v *Verifier) ParseActor(tokenString string) (ledger.Address, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return ledger.Address{}, apperrors.UnAuthorizedError(err, "invalid bearer token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || !common.IsHexAddress(sub) {
		return ledger.Address{}, apperrors.UnAuthorizedError(err, "token subject is not an address")
	}
	return common.HexToAddress(sub), nil
}

// Middleware authenticates requests and stores the actor address in the
// request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		actor, err := v.ParseActor(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// IssueToken mints a token for an actor address. Used by tests and local
// tooling; production deployments mint tokens in their identity provider.
func IssueToken(secret []byte, issuer string, actor ledger.Address) (string, error) {
	claims := jwt.MapClaims{"sub": actor.Hex()}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
