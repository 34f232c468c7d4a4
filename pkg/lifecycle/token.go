package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexhr/curator/pkg/rules"
)

const tokenIssuer = "curator/lifecycle"

// ApprovalClaims are the registered claims of an approval token plus
// the statuses the holder may transition rules into.
type ApprovalClaims struct {
	jwt.RegisteredClaims
	AllowedStatuses []string `json:"allowed_statuses,omitempty"`
}

// IssueApprovalToken signs an HS256 token letting actor perform the
// given transitions until the TTL runs out.
func IssueApprovalToken(secret []byte, actor string, allowed []rules.Status, ttl time.Duration) (string, error) {
	if actor == "" {
		return "", fmt.Errorf("approval token requires an actor subject")
	}
	now := time.Now().UTC()
	statuses := make([]string, 0, len(allowed))
	for _, s := range allowed {
		statuses = append(statuses, string(s))
	}
	claims := ApprovalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AllowedStatuses: statuses,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// TransitionWithToken verifies the approval token and applies the
// transition with the token subject as actor. Expired or foreign-issuer
// tokens and transitions outside the token's allowed statuses are
// rejected before any rule is touched.
func (m *Manager) TransitionWithToken(ctx context.Context, secret []byte, tokenString, ruleID string, to rules.Status) (*rules.RegulatoryRule, error) {
	claims := &ApprovalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: approval token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if len(claims.AllowedStatuses) > 0 && !contains(claims.AllowedStatuses, string(to)) {
		return nil, fmt.Errorf("%w: token for %s does not permit transition to %s",
			ErrInvalidTransition, claims.Subject, to)
	}
	return m.Transition(ctx, ruleID, to, claims.Subject)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
