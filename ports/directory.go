package ports

import (
	"context"

	"github.com/layer-3/keygate/core"
)

// UserDirectory resolves the application user behind a request credential
type UserDirectory interface {
	Authenticate(ctx context.Context, credential string) (core.User, error)
}
