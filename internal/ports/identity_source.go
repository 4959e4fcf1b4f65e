package ports

import (
	"context"

	"github.com/bnema/catq/internal/domain"
)

// IdentitySource emits the current identity once on subscription and again
// on every change. The zero Identity means nobody is logged in. Emissions
// may repeat the same value.
type IdentitySource interface {
	Subscribe(ctx context.Context, fn func(domain.Identity)) (cancel func(), err error)
}
