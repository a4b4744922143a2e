package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDIsStable(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	assert.Len(t, id, 26)

	again, same := EnsureCorrelationID(ctx)
	assert.Equal(t, id, same)
	assert.Equal(t, id, CorrelationIDFromContext(again))
}

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "tech", "42")
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, "tech", actorType)
	assert.Equal(t, "42", actorID)

	actorType, actorID = ActorFromContext(context.Background())
	assert.Empty(t, actorType)
	assert.Empty(t, actorID)
}
