package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	bus.Publish(New(TypeUserCreated, "user-1", map[string]any{"provider": ""}))

	select {
	case e := <-ch:
		assert.Equal(t, TypeUserCreated, e.Type)
		assert.Equal(t, "user-1", e.ActorID)
		assert.NotEmpty(t, e.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	unsubscribe()
	_, open := <-ch
	require.False(t, open)

	// Publishing without subscribers must not block.
	bus.Publish(New(TypeUserSignedOut, "user-1", nil))
}
