package flighttask

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// LineFollower generates setpoints for the loiter/position phases. The
// real trajectory generator lives outside this component; the interface
// lets the dispatcher be tested with a stub.
type LineFollower interface {
	Generate(in CycleInput, alt float64, sp *Setpoints, c *Constraints, speedAtTarget *float64)
}

// Dispatcher maps the current waypoint classification to one of five
// setpoint generation policies, once per control cycle. The only state
// carried across cycles is the previous classification plus the held
// setpoints; both are owned exclusively by this component.
type Dispatcher struct {
	params   Params
	follower LineFollower

	setpoints      Setpoints
	constraints    Constraints
	speedAtTarget  float64
	altAboveGround float64
	prevType       WaypointType
}

// NewDispatcher constructs a dispatcher with the given parameters and
// line follower. A nil follower leaves the held setpoints untouched
// during loiter/position.
func NewDispatcher(params Params, follower LineFollower) *Dispatcher {
	params.Sanitize()
	return &Dispatcher{
		params:      params,
		follower:    follower,
		constraints: DefaultConstraints(),
		prevType:    WaypointIdle,
	}
}

// SetParams replaces the tunable parameters. Runs the alt1/alt2
// invariant fix on every call.
func (d *Dispatcher) SetParams(p Params) {
	p.Sanitize()
	d.params = p
}

// Params returns the active (sanitized) parameter set.
func (d *Dispatcher) Params() Params {
	return d.params
}

// Activate resets constraints and setpoints to the current vehicle
// state so no command from a prior session leaks into this one.
func (d *Dispatcher) Activate(state VehicleState) {
	d.constraints = DefaultConstraints()
	d.resetToState(state)
}

// resetToState holds the current kinematic state as the setpoint.
func (d *Dispatcher) resetToState(state VehicleState) {
	d.setpoints.Position = EngagedVec(state.Position)
	d.setpoints.Velocity = EngagedVec(state.Velocity)
	d.speedAtTarget = 0
}

// Update runs one control cycle. Inputs are treated as an immutable
// snapshot; given identical inputs and previous classification the
// output is identical.
func (d *Dispatcher) Update(in CycleInput) CycleResult {
	// Constraints always reset first: they change with the type and
	// must never leak across classifications.
	d.constraints = DefaultConstraints()

	d.updateAltitudeAboveGround(in.State)

	followLine := in.Type.followsLine()
	followLinePrev := d.prevType.followsLine()

	// First cycle the vehicle starts to follow a line: reset all
	// setpoints to the current vehicle state.
	if followLine && !followLinePrev {
		d.resetToState(in.State)
	}

	// Thrust setpoints are only sent during idle. Clear it the moment
	// the vehicle exits idle so a stale thrust command cannot fight the
	// position controller.
	if d.prevType == WaypointIdle {
		d.setpoints.Thrust = FreeVec()
	}

	switch {
	case in.Type == WaypointIdle:
		d.generateIdleSetpoints()
	case in.Type == WaypointLand:
		d.generateLandSetpoints(in)
	case followLine:
		if d.follower != nil {
			if in.CruiseSpeed <= 0 {
				in.CruiseSpeed = d.params.CruiseSpeed
			}
			d.follower.Generate(in, d.altAboveGround, &d.setpoints, &d.constraints, &d.speedAtTarget)
		}
	case in.Type == WaypointTakeoff:
		d.generateTakeoffSetpoints(in)
	case in.Type == WaypointVelocity:
		d.generateVelocitySetpoints(in)
	}

	// During mission and reposition, raise the gear once the vehicle is
	// high enough, independent of the per-policy gear command.
	if d.highEnoughForLandingGear() {
		d.constraints.Gear = GearUp
	}

	d.prevType = in.Type

	return CycleResult{
		Setpoints:      d.setpoints,
		Constraints:    d.constraints,
		AltAboveGround: d.altAboveGround,
		Type:           in.Type,
	}
}

func (d *Dispatcher) generateIdleSetpoints() {
	// Zero thrust, no position/velocity demand.
	d.setpoints.Position = FreeVec()
	d.setpoints.Velocity = FreeVec()
	d.setpoints.Thrust = ZeroVec()
}

func (d *Dispatcher) generateLandSetpoints(in CycleInput) {
	// Keep xy-position and go down with the configured land speed.
	d.setpoints.Position = SetpointVec{X: Eng(in.Target.X), Y: Eng(in.Target.Y), Z: Free}
	d.setpoints.Velocity = SetpointVec{X: Free, Y: Free, Z: Eng(d.params.LandSpeed)}
	d.constraints.TiltDeg = d.params.TiltMaxLandDeg
	d.constraints.SpeedDown = d.params.LandSpeed
	d.constraints.Gear = GearDown
}

func (d *Dispatcher) generateTakeoffSetpoints(in CycleInput) {
	// Takeoff is completely defined by the target position.
	d.setpoints.Position = EngagedVec(in.Target)
	d.setpoints.Velocity = FreeVec()

	// Ramp the ascent limit with height above ground: zero at alt2 up
	// to the takeoff speed at alt1. Above alt1 the constraint already
	// in place this cycle stands, which may exceed the takeoff speed.
	if d.altAboveGround <= d.params.LandAlt1 {
		d.constraints.SpeedUp = gradual(d.altAboveGround,
			d.params.LandAlt2, d.params.LandAlt1, 0, d.params.TakeoffSpeed)
	}

	d.constraints.Gear = GearDown
}

func (d *Dispatcher) generateVelocitySetpoints(in CycleInput) {
	// Hold altitude, command horizontal speed along the current
	// direction of travel.
	d.setpoints.Position = SetpointVec{X: Free, Y: Free, Z: Eng(in.State.Position.Z)}

	cruise := d.params.CruiseSpeed
	if in.CruiseSpeed > 0 {
		cruise = in.CruiseSpeed
	}
	dir := unitOrZero(r2.Vec{X: in.State.Velocity.X, Y: in.State.Velocity.Y})
	velXY := r2.Scale(cruise, dir)
	d.setpoints.Velocity = SetpointVec{X: Eng(velXY.X), Y: Eng(velXY.Y), Z: Free}
}

// updateAltitudeAboveGround recomputes the vertical clearance estimate.
// Priority: range sensor, then home-relative height, then height above
// the local frame origin.
func (d *Dispatcher) updateAltitudeAboveGround(state VehicleState) {
	d.altAboveGround = -state.Position.Z

	if isFinite(state.DistBottom) {
		d.altAboveGround = state.DistBottom
	} else if state.Home.AltValid {
		d.altAboveGround = -state.Position.Z + state.Home.Z
	}
}

func (d *Dispatcher) highEnoughForLandingGear() bool {
	return d.altAboveGround > GearUpAltitude
}

// AltAboveGround returns the clearance estimate from the last cycle.
func (d *Dispatcher) AltAboveGround() float64 {
	return d.altAboveGround
}

// Setpoints returns the held setpoint triple.
func (d *Dispatcher) Setpoints() Setpoints {
	return d.setpoints
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// unitOrZero normalizes v, returning the zero vector when v has no
// length.
func unitOrZero(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// unitOrZero3 is the 3D counterpart used by the line follower.
func unitOrZero3(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
