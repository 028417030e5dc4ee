package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/pipeline-service/internal/model"
	"github.com/iliyamo/pipeline-service/internal/repository"
)

// ErrUnauthenticated covers every reason a request has no principal: no
// token, an expired or invalid token, or a subject whose account is gone.
var ErrUnauthenticated = errors.New("not authenticated")

// UserFinder is the slice of the credential store the gate needs.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// Gate resolves a raw bearer token into the User it was issued to.  It has
// no knowledge of which resource the request is after.
type Gate struct {
	tokens *TokenService
}

func NewGate(tokens *TokenService) *Gate {
	return &Gate{tokens: tokens}
}

// Authenticate validates raw and loads its subject from users.  An empty
// raw means no credential was presented.  Store failures other than a
// missing row are returned as-is so they surface as server errors.
func (g *Gate) Authenticate(ctx context.Context, users UserFinder, raw string) (*model.User, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	subject, err := g.tokens.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	u, err := users.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return nil, err
	}
	return u, nil
}

// BearerToken extracts the token from an Authorization header value.  The
// scheme is matched case-insensitively; any other shape yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
