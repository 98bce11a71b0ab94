package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// JWTCodec signs and verifies HS256 bearer credentials.
type JWTCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var _ auth.BearerCodec = (*JWTCodec)(nil)

func NewJWTCodec(secret, issuer string, ttl time.Duration) *JWTCodec {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &JWTCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

type bearerClaims struct {
	// ID is the legacy account id claim; older clients read it instead of sub.
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *JWTCodec) Sign(id domain.Identity) (string, error) {
	if strings.TrimSpace(id.ID) == "" {
		return "", domain.ErrMissingField("account_id")
	}

	now := c.now()
	claims := bearerClaims{
		ID:    id.ID,
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (c *JWTCodec) Verify(token string) (domain.BearerClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.BearerClaims{}, domain.ErrTokenInvalid()
	}

	opts := []jwt.ParserOption{
		// prevent alg confusion
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &bearerClaims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.BearerClaims{}, domain.ErrTokenExpired()
		}
		return domain.BearerClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*bearerClaims)
	if !ok || !parsed.Valid {
		return domain.BearerClaims{}, domain.ErrTokenInvalid()
	}

	accountID := claims.Subject
	if accountID == "" {
		accountID = claims.ID
	}
	if strings.TrimSpace(accountID) == "" {
		return domain.BearerClaims{}, domain.ErrTokenInvalid()
	}

	out := domain.BearerClaims{
		AccountID: accountID,
		Email:     claims.Email,
		Name:      claims.Name,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
