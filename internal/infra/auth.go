// README: Token verification contract shared by the JWT and Firebase providers.
package infra

import (
	"context"
	"errors"

	"cabdispatch/internal/types"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID types.ID
	Role   types.Role
}

func (i Identity) Caller() types.Caller {
	return types.Caller{UserID: i.UserID, Role: i.Role}
}

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Identity, error)
}
