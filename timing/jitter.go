package timing

import (
	"math/rand"
	"sync"
)

// Jitter draws randomized delays, for example the foreperiod before a
// stimulus. The random generator is supplied by the caller so that a session
// can be replayed from its seed.
type Jitter struct {
	lock sync.Mutex
	rng  *rand.Rand
	min  VTimeInTick
	max  VTimeInTick
}

// NewJitter creates a Jitter drawing uniformly from [min, max].
func NewJitter(rng *rand.Rand, min, max VTimeInTick) *Jitter {
	if min > max {
		panic("jitter minimum is larger than maximum")
	}

	return &Jitter{rng: rng, min: min, max: max}
}

// Next draws a delay.
func (j *Jitter) Next() VTimeInTick {
	if j.min == j.max {
		return j.min
	}

	j.lock.Lock()
	defer j.lock.Unlock()

	return j.min + VTimeInTick(j.rng.Int63n(int64(j.max-j.min)+1))
}

// Apply draws a delay, sets it on evt and returns it.
func (j *Jitter) Apply(evt *Event) VTimeInTick {
	d := j.Next()
	evt.SetDelay(d)

	return d
}
