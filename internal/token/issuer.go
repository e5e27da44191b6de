// Package token signs and validates patient session tokens (HS256 JWTs).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"booking-service/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret is not configured")
)

// Identity is what a session token asserts about its bearer.
type Identity struct {
	UserID primitive.ObjectID
	Mobile string
}

type Claims struct {
	Mobile string `json:"mobile"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret    []byte
	issuer    string
	expiresIn time.Duration
	now       func() time.Time
}

func NewIssuer(cfg *config.Config) (*Issuer, error) {
	if cfg.JWT.Secret == "" {
		return nil, ErrNoSecret
	}
	expiresIn := cfg.JWT.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 7 * 24 * time.Hour
	}
	return &Issuer{
		secret:    []byte(cfg.JWT.Secret),
		issuer:    cfg.JWT.Issuer,
		expiresIn: expiresIn,
		now:       time.Now,
	}, nil
}

func (i *Issuer) Sign(id Identity) (string, error) {
	now := i.now()
	claims := Claims{
		Mobile: id.Mobile,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.Hex(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiresIn)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Validate(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Identity{UserID: userID, Mobile: claims.Mobile}, nil
}
