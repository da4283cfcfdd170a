// README: HS256 access tokens: issued at login, verified by the auth middleware.
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cabdispatch/internal/types"
)

type Claims struct {
	Role types.Role `json:"role"`
	jwt.RegisteredClaims
}

var _ jwt.Claims = (*Claims)(nil)

type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) (*JWTManager, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, errors.New("jwt: empty secret")
	}
	return &JWTManager{secret: []byte(s), ttl: ttl, now: time.Now}, nil
}

func (m *JWTManager) Issue(userID types.ID, role types.Role) (string, time.Time, error) {
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("jwt: invalid role %q", role)
	}
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *JWTManager) VerifyToken(_ context.Context, raw string) (*Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	id, ok := types.ParseID(claims.Subject)
	if !ok || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: id, Role: claims.Role}, nil
}
