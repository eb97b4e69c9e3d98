package resubmission

import (
	"testing"

	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHub_BroadcastAndCancel(t *testing.T) {
	hub := NewHub(1, zerolog.Nop())
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Broadcast(notice("n-1", testingpkg.FixtureEpoch))
	assert.Equal(t, "n-1", (<-a).ID)
	assert.Equal(t, "n-1", (<-b).ID)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())

	// b has room for one notice; the second is dropped.
	hub.Broadcast(notice("n-2", testingpkg.FixtureEpoch))
	hub.Broadcast(notice("n-3", testingpkg.FixtureEpoch))
	assert.Equal(t, "n-2", (<-b).ID)
	assert.Equal(t, int64(1), hub.Dropped())

	cancelB()
	assert.Equal(t, 0, hub.Subscribers())
}
