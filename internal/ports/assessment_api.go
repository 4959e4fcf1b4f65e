package ports

import (
	"context"

	"github.com/bnema/catq/internal/domain"
)

// AssessmentAPI is the remote service that selects items and estimates θ.
// StartSession is not idempotent server-side; callers must not repeat it for
// an unfinished session.
type AssessmentAPI interface {
	StartSession(ctx context.Context, identity domain.Identity) error
	NextItem(ctx context.Context, identity domain.Identity) (domain.NextItemResult, error)
	SubmitAnswer(ctx context.Context, answer domain.Answer) (domain.SubmitResult, error)
}
