package sim

import (
	"math"
	"sync"
	"time"
)

// Pos2D is a position on the ground in meters. The radar is at the origin
// facing +Y.
type Pos2D struct {
	X, Y float64
}

// Velocity2D is in meters per second.
type Velocity2D struct {
	VX, VY float64
}

// Object is a moving object in the scene.
type Object struct {
	Pos      Pos2D
	Velocity Velocity2D
	// SignalStrength is the reflected signal level.
	SignalStrength float64
}

// Observation is how the radar sees an object.
type Observation struct {
	// Angle in degrees, positive to the right.
	Angle float64
	// Distance in meters.
	Distance float64
	// Speed is the radial speed in km/h.
	Speed float64
	// Towards indicates the object is approaching.
	Towards        bool
	SignalStrength float64
}

// Observe computes the observation of an object.
func (o *Object) Observe() Observation {
	dist := math.Hypot(o.Pos.X, o.Pos.Y)
	obs := Observation{
		Angle:          math.Atan2(o.Pos.X, o.Pos.Y) * 180 / math.Pi,
		Distance:       dist,
		SignalStrength: o.SignalStrength,
	}
	if dist > 0 {
		radial := (o.Pos.X*o.Velocity.VX + o.Pos.Y*o.Velocity.VY) / dist
		obs.Speed = math.Abs(radial) * 3.6
		obs.Towards = radial < 0
	}
	return obs
}

// Scene moves objects in front of a radar.
type Scene struct {
	// Range is the max distance of the scene. Objects beyond it wrap back.
	Range float64

	lock    sync.Mutex
	objects []Object
}

// NewScene creates a scene with objects.
func NewScene(rangeMeters float64, objects ...Object) *Scene {
	return &Scene{Range: rangeMeters, objects: objects}
}

// Step moves all objects by dt.
func (s *Scene) Step(dt time.Duration) {
	sec := dt.Seconds()
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.objects {
		o := &s.objects[i]
		o.Pos.X += o.Velocity.VX * sec
		o.Pos.Y += o.Velocity.VY * sec
		if o.Pos.Y < 1 || math.Hypot(o.Pos.X, o.Pos.Y) > s.Range {
			// turn around at both ends.
			o.Velocity.VX, o.Velocity.VY = -o.Velocity.VX, -o.Velocity.VY
		}
	}
}

// Observe observes all objects.
func (s *Scene) Observe() []Observation {
	s.lock.Lock()
	defer s.lock.Unlock()
	obs := make([]Observation, len(s.objects))
	for i := range s.objects {
		obs[i] = s.objects[i].Observe()
	}
	return obs
}
