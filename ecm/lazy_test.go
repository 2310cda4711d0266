package ecm_test

import (
	"testing"

	"github.com/plus3/herald/ecm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazySpawn(t *testing.T) {
	w := newTestWorld()

	e := w.LazySpawn().With(Position{X: 1}).Build()

	// The handle is real immediately, but the entity is not alive yet.
	assert.Equal(t, ecm.Reserved, w.Liveness(e))
	assert.Equal(t, 0, w.Len())

	w.Finalize()
	assert.Equal(t, ecm.Alive, w.Liveness(e))
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, float32(1), ecm.Get[Position](w, e).X)
}

// Finalizing an already-applied spawn must not spawn it again.
func TestLazySpawnAppliedOnce(t *testing.T) {
	w := newTestWorld()

	e := w.LazySpawn().With(Name{Value: "once"}).Build()
	w.Finalize()
	w.Finalize()

	assert.Equal(t, 1, w.Len())
	assert.Equal(t, ecm.Alive, w.Liveness(e))
}

func TestLazyDespawn(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(Position{}).Build()
	w.LazyDespawn(e)

	assert.Equal(t, ecm.Alive, w.Liveness(e))
	w.Finalize()
	assert.Equal(t, ecm.Dead, w.Liveness(e))
	assert.Equal(t, 0, w.Len())
}

// Despawning the same entity twice through the queue is fine: by the time
// the second update runs the entity is simply already dead.
func TestLazyDoubleDespawn(t *testing.T) {
	w := newTestWorld()

	e := w.Spawn().With(Position{}).Build()
	w.LazyDespawn(e)
	w.LazyDespawn(e)

	assert.NotPanics(t, func() { w.Finalize() })
	assert.Equal(t, ecm.Dead, w.Liveness(e))
}

func TestLazySpawnFromHandler(t *testing.T) {
	w := newTestWorld()

	w.Spawn().With(Duplicator{}).Build()
	w.DispatchToAll(MsgReproduce{})

	assert.Equal(t, 1, w.Len(), "the copy must not appear before Finalize")
	w.Finalize()
	assert.Equal(t, 2, w.Len())
}

// ChainSpawner lazy-spawns another entity from its own create callback, so
// applying one update queues the next. Finalize has to keep draining.
type ChainSpawner struct {
	Depth int
}

func (ChainSpawner) RegisterHandlers(b *ecm.HandlerBuilder) {
	ecm.OnCreate(b, func(this *ChainSpawner, owner ecm.Entity, access *ecm.CallbackAccess) {
		if this.Depth > 0 {
			access.LazySpawn().With(ChainSpawner{Depth: this.Depth - 1}).Build()
		}
	})
}

func TestFinalizeDrainsUpdatesQueuedWhileFinalizing(t *testing.T) {
	w := ecm.NewWorld()
	ecm.RegisterComponent[ChainSpawner](w)

	w.LazySpawn().With(ChainSpawner{Depth: 4}).Build()
	w.Finalize()

	assert.Equal(t, 5, w.Len())
}

func TestCreateAndRemoveCallbacks(t *testing.T) {
	w := newTestWorld()
	ecm.InsertResource(w, CensusCount{})

	e := w.Spawn().With(Tracked{}).Build()
	e2 := w.Spawn().With(Tracked{}).Build()
	w.Despawn(e)

	err := ecm.ViewResource(w, func(c *CensusCount) {
		assert.Equal(t, 2, c.Created)
		assert.Equal(t, 1, c.Removed)
	})
	require.NoError(t, err)

	// Lazy despawn reaches the same callback, just later.
	w.LazyDespawn(e2)
	w.Finalize()
	err = ecm.ViewResource(w, func(c *CensusCount) {
		assert.Equal(t, 2, c.Removed)
	})
	require.NoError(t, err)
}

// One Duplicator, sixteen rounds of reproduction: the population doubles
// each round, so the world ends up with exactly 1<<16 entities and every
// handle stays unique along the way.
func TestReproductionDoubling(t *testing.T) {
	w := newTestWorld()
	w.Spawn().With(Duplicator{}).Build()

	const rounds = 16
	for i := 0; i < rounds; i++ {
		w.DispatchToAll(MsgReproduce{})
		w.Finalize()
		require.Equal(t, 1<<(i+1), w.Len(), "after round %d", i+1)
	}

	seen := make(map[ecm.Entity]bool, 1<<rounds)
	for e := range w.Entities() {
		require.False(t, seen[e], "duplicate handle %v", e)
		seen[e] = true
	}
	assert.Len(t, seen, 1<<rounds)
}
