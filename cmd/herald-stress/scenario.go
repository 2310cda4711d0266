package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/herald/blueprint"
	"github.com/plus3/herald/ecm"
)

// The scenario: a population of boids that doubles every reproduction round,
// wanders around on ticks, and ages out through the lazy-despawn path. It
// leans on every structural operation the runtime has, so a miscount
// anywhere shows up as a population divergence.

type MsgTick struct{}
type MsgReproduce struct{}

type Boid struct {
	Pos mgl64.Vec2 `yaml:"pos"`
	Vel mgl64.Vec2 `yaml:"vel"`
}

func (Boid) RegisterHandlers(b *ecm.HandlerBuilder) {
	b.SetFriendlyName("boid")
	blueprint.Codec[Boid](b)
	ecm.HandleWrite(b, func(this *Boid, msg MsgTick, owner ecm.Entity, access *ecm.WorldAccess) MsgTick {
		this.Pos = this.Pos.Add(this.Vel)
		return msg
	})
}

type Spawner struct {
	Jitter float64 `yaml:"jitter"`
}

func (Spawner) RegisterHandlers(b *ecm.HandlerBuilder) {
	b.SetFriendlyName("spawner")
	blueprint.Codec[Spawner](b)
	ecm.HandleRead(b, func(this *Spawner, msg MsgReproduce, owner ecm.Entity, access *ecm.WorldAccess) MsgReproduce {
		child := access.LazySpawn()

		var angle float64
		var ttlJitter int
		if err := ecm.MutateResource(access, func(r *worldRNG) {
			angle = (r.Float64()*2 - 1) * this.Jitter
			ttlJitter = r.Intn(16)
		}); err != nil {
			panic(err)
		}

		if boid := ecm.Get[Boid](access, owner); boid != nil {
			child.Insert(Boid{
				Pos: boid.Pos,
				Vel: mgl64.Rotate2D(angle).Mul2x1(boid.Vel),
			})
		}
		child.Insert(Spawner{Jitter: this.Jitter})
		if mortal := ecm.Get[Mortal](access, owner); mortal != nil {
			// Spread child lifetimes out so deaths don't all land on one tick.
			child.Insert(Mortal{TTL: mortal.TTL + ttlJitter})
		}
		child.Build()
		return msg
	})
}

type Mortal struct {
	TTL int `yaml:"ttl"`
}

func (Mortal) RegisterHandlers(b *ecm.HandlerBuilder) {
	b.SetFriendlyName("mortal")
	blueprint.Codec[Mortal](b)
	ecm.HandleWrite(b, func(this *Mortal, msg MsgTick, owner ecm.Entity, access *ecm.WorldAccess) MsgTick {
		this.TTL--
		if this.TTL <= 0 {
			access.LazyDespawn(owner)
		}
		return msg
	})
	ecm.OnRemove(b, func(this *Mortal, owner ecm.Entity, access *ecm.CallbackAccess) {
		if err := ecm.MutateResource(access, func(c *census) { c.despawned++ }); err != nil {
			panic(err)
		}
	})
}

// worldRNG keeps each world's randomness its own, reachable from handlers.
type worldRNG struct {
	*rand.Rand
}

type census struct {
	despawned int
}

const seedBlueprints = `
seed:
  components:
    - boid: {pos: [0, 0], vel: [1, 0]}
    - spawner: {jitter: 0.5}
    - mortal: {ttl: 48}
`

type config struct {
	seedEntities int
	generations  int
	ticks        int
}

type worldResult struct {
	finalEntities int
	despawned     int
	spawnRounds   []time.Duration
	tickRounds    []time.Duration
}

// runWorld builds one world, doubles its population for the configured
// number of generations (verifying the count after every round), then ticks
// it until the timer runs out of rounds. Worlds are single-threaded; the
// caller runs many of them in parallel.
func runWorld(cfg config, seed int64) (worldResult, error) {
	var res worldResult

	w := ecm.NewWorld()
	ecm.RegisterComponent[Boid](w)
	ecm.RegisterComponent[Spawner](w)
	ecm.RegisterComponent[Mortal](w)
	ecm.InsertResource(w, worldRNG{rand.New(rand.NewSource(seed))})
	ecm.InsertResource(w, census{})

	fab := blueprint.NewFabricator(w)
	if err := fab.LoadString(seedBlueprints, "seed.yaml"); err != nil {
		return res, err
	}
	for i := 0; i < cfg.seedEntities; i++ {
		if _, err := fab.Instantiate("seed"); err != nil {
			return res, err
		}
	}

	expected := cfg.seedEntities
	for g := 0; g < cfg.generations; g++ {
		start := time.Now()
		w.DispatchToAll(MsgReproduce{})
		w.Finalize()
		res.spawnRounds = append(res.spawnRounds, time.Since(start))

		expected *= 2
		if w.Len() != expected {
			return res, fmt.Errorf("population diverged: generation %d has %d entities, want %d", g+1, w.Len(), expected)
		}
	}

	for i := 0; i < cfg.ticks; i++ {
		start := time.Now()
		w.DispatchToAll(MsgTick{})
		w.Finalize()
		res.tickRounds = append(res.tickRounds, time.Since(start))
	}

	res.finalEntities = w.Len()
	err := ecm.ViewResource(w, func(c *census) { res.despawned = c.despawned })
	return res, err
}
