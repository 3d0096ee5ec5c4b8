package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "PROVIDER", "user-1")
	role, id := ActorFromContext(ctx)
	assert.Equal(t, "PROVIDER", role)
	assert.Equal(t, "user-1", id)
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	ctx = WithRunID(ctx, "")
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = WithRunID(ctx, "01J0000000000000000000000")
	assert.Equal(t, "01J0000000000000000000000", RunIDFromContext(ctx))
}
