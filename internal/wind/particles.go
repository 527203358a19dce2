package wind

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	particleMaxAge = 80
	maxParticles   = 600
)

// Particle is a moving tracer over the screen field. Age counts frames
// since the last reset.
type Particle struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Age int     `json:"age"`
}

// SeedParticles places tracers uniformly at random over the viewport.
// Density follows the grid resolution, capped at maxParticles.
func SeedParticles(sf *ScreenField, rng *rand.Rand) []Particle {
	if sf == nil || sf.Step == 0 {
		return nil
	}
	count := int(sf.Width * sf.Height / (sf.Step * sf.Step) * 0.9)
	if count > maxParticles {
		count = maxParticles
	}
	if count <= 0 {
		return nil
	}
	particles := make([]Particle, count)
	for i := range particles {
		particles[i] = Particle{
			X:   rng.Float64() * sf.Width,
			Y:   rng.Float64() * sf.Height,
			Age: rng.Intn(particleMaxAge),
		}
	}
	return particles
}

// AdvanceParticles moves every tracer along the field by one frame of
// dt milliseconds. A tracer resets to a random position when it ages
// out, leaves the viewport, or lands on a cell without data.
func AdvanceParticles(particles []Particle, sf *ScreenField, zoom, dt float64, rng *rand.Rand) {
	if sf == nil || len(particles) == 0 {
		return
	}
	zoomFactor := math.Max(0.6, math.Pow(2, (zoom-12)*0.15))
	speedScale := dt / 16 * 0.35 / zoomFactor

	for i := range particles {
		p := &particles[i]
		p.Age++
		v, ok := sf.VectorAt(p.X, p.Y)
		if p.Age > particleMaxAge || !ok {
			particles[i] = respawn(sf, rng)
			continue
		}
		p.X += v.Dx * 0.06 * speedScale
		p.Y += v.Dy * 0.06 * speedScale
		if p.X < 0 || p.X > sf.Width || p.Y < 0 || p.Y > sf.Height {
			particles[i] = respawn(sf, rng)
		}
	}
}

func respawn(sf *ScreenField, rng *rand.Rand) Particle {
	return Particle{
		X: rng.Float64() * sf.Width,
		Y: rng.Float64() * sf.Height,
	}
}

// Animator steps a particle set on a fixed frame interval until stopped.
// Frame reads the current state under lock.
type Animator struct {
	mu        sync.Mutex
	particles []Particle
	sf        *ScreenField
	zoom      float64

	interval time.Duration
	rng      *rand.Rand

	done chan struct{}
	wg   sync.WaitGroup
}

func NewAnimator(sf *ScreenField, zoom float64, interval time.Duration) *Animator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Animator{
		particles: SeedParticles(sf, rng),
		sf:        sf,
		zoom:      zoom,
		interval:  interval,
		rng:       rng,
		done:      make(chan struct{}),
	}
}

// Start runs the frame loop in a goroutine. Stop waits for it to exit.
func (a *Animator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-a.done:
				return
			case now := <-ticker.C:
				dt := float64(now.Sub(last).Milliseconds())
				last = now
				a.step(dt)
			}
		}
	}()
}

func (a *Animator) step(dt float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	AdvanceParticles(a.particles, a.sf, a.zoom, dt, a.rng)
}

// SetField swaps in a rebuilt screen field and reseeds the tracers.
func (a *Animator) SetField(sf *ScreenField, zoom float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sf = sf
	a.zoom = zoom
	a.particles = SeedParticles(sf, a.rng)
}

// Frame returns a copy of the current particle positions.
func (a *Animator) Frame() []Particle {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Particle, len(a.particles))
	copy(out, a.particles)
	return out
}

// Stop halts the frame loop and waits for it to finish. Safe to call
// once.
func (a *Animator) Stop() {
	close(a.done)
	a.wg.Wait()
}
