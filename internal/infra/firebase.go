// README: Firebase Admin SDK initialisation and token verifier.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"cabdispatch/internal/types"
)

// firebaseVerifier maps Firebase ID tokens onto local users through the
// "user_id" and "role" custom claims set when the account is provisioned.
type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier using the Firebase Admin SDK.
// If credentialsFile is non-empty it is used as the service-account JSON path;
// otherwise application-default credentials are used.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyToken(ctx context.Context, raw string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return identityFromClaims(token.Claims)
}

func identityFromClaims(claims map[string]interface{}) (*Identity, error) {
	role, _ := claims["role"].(string)
	if !types.Role(role).Valid() {
		return nil, ErrInvalidToken
	}
	// JSON numbers decode as float64.
	raw, ok := claims["user_id"].(float64)
	if !ok || raw <= 0 || raw != float64(int64(raw)) {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: types.ID(int64(raw)), Role: types.Role(role)}, nil
}
