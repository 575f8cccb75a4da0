package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/utilities"
)

var errMissingSubject = errors.New("token has no userId")

// Codec signs and verifies HS256 session tokens with a shared secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for the user. Every token carries a fresh jti, so two
// tokens minted within the same second still differ.
func (c *Codec) Sign(userID, email string, extra map[string]any) (string, time.Time, error) {
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(c.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		Extra:  extra,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utilities.NewKSUID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm and expiry.
func (c *Codec) Parse(token string) (*Claims, error) {
	return c.parse(token, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
}

// ParseIgnoringExpiry verifies signature and algorithm only.
func (c *Codec) ParseIgnoringExpiry(token string) (*Claims, error) {
	return c.parse(token, jwt.WithoutClaimsValidation())
}

// Decode reads the claims without any verification. Only used to recover the
// expiry of a token that is being revoked.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}
