package flighttask

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// stubFollower records delegation and marks the setpoints so tests can
// tell the line-follow branch ran.
type stubFollower struct {
	calls int
	alt   float64
}

func (s *stubFollower) Generate(in CycleInput, alt float64, sp *Setpoints, c *Constraints, speedAtTarget *float64) {
	s.calls++
	s.alt = alt
	sp.Position = EngagedVec(in.Target)
	sp.Velocity = ZeroVec()
}

func flyingState() VehicleState {
	return VehicleState{
		Position:   r3.Vec{X: 1, Y: 2, Z: -20},
		Velocity:   r3.Vec{X: 3, Y: 4, Z: 0},
		DistBottom: math.NaN(),
	}
}

func groundState() VehicleState {
	return VehicleState{
		Position:   r3.Vec{X: 0, Y: 0, Z: 0},
		Velocity:   r3.Vec{},
		DistBottom: math.NaN(),
	}
}

func TestActivateResetsToState(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	st := flyingState()
	d.Activate(st)

	sp := d.Setpoints()
	assert.Equal(t, EngagedVec(st.Position), sp.Position)
	assert.Equal(t, EngagedVec(st.Velocity), sp.Velocity)
}

func TestIdleSetpoints(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	d.Activate(groundState())

	res := d.Update(CycleInput{State: groundState(), Type: WaypointIdle})

	assert.Equal(t, FreeVec(), res.Setpoints.Position)
	assert.Equal(t, FreeVec(), res.Setpoints.Velocity)
	assert.Equal(t, ZeroVec(), res.Setpoints.Thrust)
	// On the ground with gear untouched the default constraints stand.
	assert.Equal(t, DefaultConstraints(), res.Constraints)
}

func TestIdleExitClearsThrust(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	d.Activate(groundState())

	d.Update(CycleInput{State: groundState(), Type: WaypointIdle})
	res := d.Update(CycleInput{State: groundState(), Type: WaypointTakeoff, Target: r3.Vec{Z: -10}})

	assert.Equal(t, FreeVec(), res.Setpoints.Thrust)
}

func TestLandScenario(t *testing.T) {
	p := DefaultParams()
	p.LandSpeed = 1.5
	d := NewDispatcher(p, nil)
	d.Activate(flyingState())

	res := d.Update(CycleInput{
		State:  flyingState(),
		Type:   WaypointLand,
		Target: r3.Vec{X: 10, Y: 20, Z: -5},
	})

	assert.Equal(t, SetpointVec{X: Eng(10), Y: Eng(20), Z: Free}, res.Setpoints.Position)
	assert.Equal(t, SetpointVec{X: Free, Y: Free, Z: Eng(1.5)}, res.Setpoints.Velocity)
	assert.Equal(t, p.TiltMaxLandDeg, res.Constraints.TiltDeg)
	assert.Equal(t, 1.5, res.Constraints.SpeedDown)
	// Gear down is commanded, but at 20 m clearance the safety override
	// wins.
	assert.Equal(t, GearUp, res.Constraints.Gear)
}

func TestLandGearDownNearGround(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	st := groundState()
	st.Position.Z = -1.0
	d.Activate(st)

	res := d.Update(CycleInput{State: st, Type: WaypointLand, Target: r3.Vec{}})
	assert.Equal(t, GearDown, res.Constraints.Gear)
}

func TestLineFollowEntryResetsSetpoints(t *testing.T) {
	follower := &stubFollower{}
	d := NewDispatcher(DefaultParams(), follower)
	d.Activate(groundState())

	// Leave a velocity-phase setpoint behind.
	d.Update(CycleInput{State: flyingState(), Type: WaypointVelocity})

	// Swap the follower for one that observes the pre-policy state.
	st := flyingState()
	var seen Setpoints
	d.follower = followerFunc(func(in CycleInput, alt float64, sp *Setpoints, c *Constraints, speedAtTarget *float64) {
		seen = *sp
		assert.Zero(t, *speedAtTarget)
	})
	d.Update(CycleInput{State: st, Type: WaypointPosition, Target: r3.Vec{X: 5}})

	assert.Equal(t, EngagedVec(st.Position), seen.Position)
	assert.Equal(t, EngagedVec(st.Velocity), seen.Velocity)
}

func TestLineFollowNoResetWhenAlreadyFollowing(t *testing.T) {
	follower := &stubFollower{}
	d := NewDispatcher(DefaultParams(), follower)
	d.Activate(flyingState())

	d.Update(CycleInput{State: flyingState(), Type: WaypointLoiter, Target: r3.Vec{X: 5}})
	first := d.Setpoints()
	d.Update(CycleInput{State: groundState(), Type: WaypointPosition, Target: r3.Vec{X: 5}})

	// Second cycle stays on the follower's output, not a state reset.
	assert.Equal(t, first.Position, d.Setpoints().Position)
	assert.Equal(t, 2, follower.calls)
}

func TestTakeoffRamp(t *testing.T) {
	p := DefaultParams()
	p.LandAlt1 = 10
	p.LandAlt2 = 5
	p.TakeoffSpeed = 1.5
	d := NewDispatcher(p, nil)
	d.Activate(groundState())

	mkState := func(alt float64) VehicleState {
		return VehicleState{Position: r3.Vec{Z: -alt}, DistBottom: math.NaN()}
	}
	in := func(alt float64) CycleInput {
		return CycleInput{State: mkState(alt), Type: WaypointTakeoff, Target: r3.Vec{Z: -50}}
	}

	// At the lower threshold the ramp bottoms out at zero.
	res := d.Update(in(5))
	assert.Equal(t, 0.0, res.Constraints.SpeedUp)

	// Midway up the ramp.
	res = d.Update(in(7.5))
	assert.InDelta(t, 0.75, res.Constraints.SpeedUp, 1e-9)

	// At the upper threshold the full takeoff speed applies.
	res = d.Update(in(10))
	assert.InDelta(t, 1.5, res.Constraints.SpeedUp, 1e-9)

	// Above alt1 the ramp saturates at the constraint already in place.
	res = d.Update(in(15))
	assert.Equal(t, DefaultSpeedUp, res.Constraints.SpeedUp)

	// Position setpoint is fully defined by the target; gear stays down
	// below the retract altitude.
	res = d.Update(in(1))
	assert.Equal(t, EngagedVec(r3.Vec{Z: -50}), res.Setpoints.Position)
	assert.Equal(t, FreeVec(), res.Setpoints.Velocity)
	assert.Equal(t, GearDown, res.Constraints.Gear)
}

func TestVelocityScenario(t *testing.T) {
	p := DefaultParams()
	p.CruiseSpeed = 5
	d := NewDispatcher(p, nil)
	st := flyingState() // velocity (3,4): |(3,4)| = 5
	d.Activate(st)

	res := d.Update(CycleInput{State: st, Type: WaypointVelocity})

	require.True(t, res.Setpoints.Velocity.X.Engaged)
	require.True(t, res.Setpoints.Velocity.Y.Engaged)
	assert.InDelta(t, 3.0, res.Setpoints.Velocity.X.Value, 1e-9)
	assert.InDelta(t, 4.0, res.Setpoints.Velocity.Y.Value, 1e-9)
	assert.Equal(t, Free, res.Setpoints.Velocity.Z)

	// Altitude is held, horizontal position is free.
	assert.Equal(t, SetpointVec{X: Free, Y: Free, Z: Eng(st.Position.Z)}, res.Setpoints.Position)
}

func TestVelocityZeroHorizontal(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	st := flyingState()
	st.Velocity = r3.Vec{Z: -1}
	d.Activate(st)

	res := d.Update(CycleInput{State: st, Type: WaypointVelocity})

	assert.Equal(t, Eng(0), res.Setpoints.Velocity.X)
	assert.Equal(t, Eng(0), res.Setpoints.Velocity.Y)
}

func TestGearOverrideAppliesToEveryType(t *testing.T) {
	types := []WaypointType{
		WaypointIdle, WaypointLand, WaypointLoiter, WaypointPosition,
		WaypointTakeoff, WaypointVelocity,
	}
	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			d := NewDispatcher(DefaultParams(), &stubFollower{})
			st := flyingState()
			st.DistBottom = 2.5
			d.Activate(st)

			res := d.Update(CycleInput{State: st, Type: typ, Target: r3.Vec{X: 1}})
			assert.Equal(t, GearUp, res.Constraints.Gear)
		})
	}
}

func TestAltitudeSourcePriority(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)

	// Finite range sensor wins over everything.
	st := VehicleState{
		Position:   r3.Vec{Z: -30},
		DistBottom: 4.2,
		Home:       HomePosition{Z: 12, AltValid: true},
	}
	d.Update(CycleInput{State: st, Type: WaypointVelocity})
	assert.Equal(t, 4.2, d.AltAboveGround())

	// Without the sensor, home-relative height applies.
	st.DistBottom = math.NaN()
	d.Update(CycleInput{State: st, Type: WaypointVelocity})
	assert.Equal(t, 42.0, d.AltAboveGround())

	// +Inf counts as sensor unavailable too.
	st.DistBottom = math.Inf(1)
	d.Update(CycleInput{State: st, Type: WaypointVelocity})
	assert.Equal(t, 42.0, d.AltAboveGround())

	// No sensor, no home altitude: height above the local origin.
	st.Home.AltValid = false
	d.Update(CycleInput{State: st, Type: WaypointVelocity})
	assert.Equal(t, 30.0, d.AltAboveGround())
}

func TestConstraintsNeverLeakAcrossCycles(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	st := groundState()
	st.Position.Z = -1
	d.Activate(st)

	res := d.Update(CycleInput{State: st, Type: WaypointLand, Target: r3.Vec{}})
	assert.Equal(t, GearDown, res.Constraints.Gear)
	assert.Equal(t, DefaultParams().TiltMaxLandDeg, res.Constraints.TiltDeg)

	res = d.Update(CycleInput{State: st, Type: WaypointVelocity})
	assert.Equal(t, DefaultConstraints(), res.Constraints)
}

func TestUpdateIsDeterministic(t *testing.T) {
	d := NewDispatcher(DefaultParams(), nil)
	st := flyingState()
	d.Activate(st)

	in := CycleInput{State: st, Type: WaypointVelocity}
	d.Update(in) // fix the previous classification
	first := d.Update(in)
	second := d.Update(in)

	assert.Equal(t, first, second)
}

// followerFunc adapts a func to LineFollower for tests.
type followerFunc func(in CycleInput, alt float64, sp *Setpoints, c *Constraints, speedAtTarget *float64)

func (f followerFunc) Generate(in CycleInput, alt float64, sp *Setpoints, c *Constraints, speedAtTarget *float64) {
	f(in, alt, sp, c, speedAtTarget)
}
