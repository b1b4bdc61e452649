package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload understood by the API.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	BarID string `json:"bar_id,omitempty"`
	jwt.RegisteredClaims
}

// MintRequest describes a token to sign.
type MintRequest struct {
	Subject string
	Email   string
	Role    Role
	BarID   string
	TTL     time.Duration
	Now     time.Time
}

// MintToken signs an HS256 token for req with secret.
func MintToken(secret []byte, req MintRequest) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	if req.Subject == "" {
		return "", errors.New("subject is required")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := Claims{
		Email: req.Email,
		Role:  string(req.Role),
		BarID: req.BarID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// ParseToken verifies token with secret and returns its claims. Tokens
// without an expiry are rejected.
func ParseToken(secret []byte, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
