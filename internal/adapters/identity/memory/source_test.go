package memory

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/catq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceEmitsCurrentThenChanges(t *testing.T) {
	t.Parallel()

	source := New("A")
	var seen []domain.Identity

	cancel, err := source.Subscribe(context.Background(), func(identity domain.Identity) {
		seen = append(seen, identity)
	})
	require.NoError(t, err)

	source.Set("A")
	source.Set("B")
	source.Set("")
	cancel()
	cancel()
	source.Set("C")

	assert.Equal(t, []domain.Identity{"A", "A", "B", ""}, seen)
	assert.Equal(t, domain.Identity("C"), source.Current())
	assert.Zero(t, source.subscriberCount())
}

func TestSourceUnsubscribesWhenContextEnds(t *testing.T) {
	t.Parallel()

	source := New("")
	ctx, cancelCtx := context.WithCancel(context.Background())

	_, err := source.Subscribe(ctx, func(domain.Identity) {})
	require.NoError(t, err)
	require.Equal(t, 1, source.subscriberCount())

	cancelCtx()
	require.Eventually(t, func() bool { return source.subscriberCount() == 0 }, time.Second, 5*time.Millisecond)

	_, err = source.Subscribe(ctx, func(domain.Identity) {})
	assert.ErrorIs(t, err, context.Canceled)
}
