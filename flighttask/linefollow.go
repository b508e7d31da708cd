package flighttask

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// StraightLineFollower is the built-in loiter/position generator: fly
// straight at the target at cruise speed and slow to the held
// speed-at-target inside the deceleration radius. The full trajectory
// generator is an external collaborator; this keeps the daemon flyable
// without it.
type StraightLineFollower struct {
	// DecelRadius is the distance from the target at which the speed
	// demand starts tapering, in metres.
	DecelRadius float64
}

// NewStraightLineFollower returns a follower with the default
// deceleration radius.
func NewStraightLineFollower() *StraightLineFollower {
	return &StraightLineFollower{DecelRadius: 5.0}
}

// Generate implements LineFollower.
func (f *StraightLineFollower) Generate(in CycleInput, alt float64, sp *Setpoints, c *Constraints, speedAtTarget *float64) {
	cruise := in.CruiseSpeed
	if cruise <= 0 {
		cruise = DefaultCruiseSpeed
	}

	toTarget := r3.Sub(in.Target, in.State.Position)
	dist := r3.Norm(toTarget)

	sp.Position = EngagedVec(in.Target)

	if dist == 0 {
		sp.Velocity = ZeroVec()
		return
	}

	speed := cruise
	radius := f.DecelRadius
	if radius > 0 && dist < radius {
		// Taper toward the held speed-at-target near the waypoint.
		speed = gradual(dist, 0, radius, *speedAtTarget, cruise)
	}

	vel := r3.Scale(speed, unitOrZero3(toTarget))
	sp.Velocity = EngagedVec(vel)
}
