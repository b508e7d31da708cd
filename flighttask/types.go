package flighttask

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// WaypointType is the navigation layer's classification of the current
// commanded maneuver. It is supplied externally every cycle.
type WaypointType int

const (
	WaypointIdle WaypointType = iota
	WaypointTakeoff
	WaypointPosition
	WaypointLoiter
	WaypointMission
	WaypointVelocity
	WaypointLand
)

func (t WaypointType) String() string {
	switch t {
	case WaypointIdle:
		return "IDLE"
	case WaypointTakeoff:
		return "TAKEOFF"
	case WaypointPosition:
		return "POSITION"
	case WaypointLoiter:
		return "LOITER"
	case WaypointMission:
		return "MISSION"
	case WaypointVelocity:
		return "VELOCITY"
	case WaypointLand:
		return "LAND"
	default:
		return fmt.Sprintf("WaypointType(%d)", int(t))
	}
}

// ParseWaypointType converts a type name into a WaypointType.
func ParseWaypointType(value string) (WaypointType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "IDLE":
		return WaypointIdle, nil
	case "TAKEOFF":
		return WaypointTakeoff, nil
	case "POSITION":
		return WaypointPosition, nil
	case "LOITER":
		return WaypointLoiter, nil
	case "MISSION":
		return WaypointMission, nil
	case "VELOCITY":
		return WaypointVelocity, nil
	case "LAND":
		return WaypointLand, nil
	default:
		return WaypointIdle, fmt.Errorf("unknown waypoint type %q", value)
	}
}

// followsLine reports whether the type is flown by the line follower.
func (t WaypointType) followsLine() bool {
	return t == WaypointLoiter || t == WaypointPosition
}

// Axis is one setpoint axis: either engaged with a value or left
// unconstrained for the cycle. The C++ original encodes "unconstrained"
// as NaN; the explicit flag keeps that state checkable without relying
// on NaN propagation.
type Axis struct {
	Value   float64
	Engaged bool
}

// Eng returns an engaged axis holding v.
func Eng(v float64) Axis { return Axis{Value: v, Engaged: true} }

// Free is the unconstrained axis.
var Free = Axis{}

// Float returns the axis value, or NaN when unconstrained. Used at wire
// and log boundaries where downstream consumers expect the NaN sentinel.
func (a Axis) Float() float64 {
	if !a.Engaged {
		return math.NaN()
	}
	return a.Value
}

// AxisFromFloat maps the NaN sentinel back to an unconstrained axis.
func AxisFromFloat(v float64) Axis {
	if math.IsNaN(v) {
		return Free
	}
	return Eng(v)
}

// SetpointVec is a 3D setpoint where each axis may be unconstrained
// independently.
type SetpointVec struct {
	X, Y, Z Axis
}

// EngagedVec engages all three axes with the components of v.
func EngagedVec(v r3.Vec) SetpointVec {
	return SetpointVec{X: Eng(v.X), Y: Eng(v.Y), Z: Eng(v.Z)}
}

// FreeVec returns a fully unconstrained setpoint.
func FreeVec() SetpointVec { return SetpointVec{} }

// ZeroVec engages all three axes at zero.
func ZeroVec() SetpointVec { return EngagedVec(r3.Vec{}) }

// Vec converts to an r3.Vec with NaN on unconstrained axes.
func (s SetpointVec) Vec() r3.Vec {
	return r3.Vec{X: s.X.Float(), Y: s.Y.Float(), Z: s.Z.Float()}
}

// GearCommand is the landing gear actuation request for the cycle.
type GearCommand int

const (
	GearKeep GearCommand = iota
	GearUp
	GearDown
)

func (g GearCommand) String() string {
	switch g {
	case GearUp:
		return "UP"
	case GearDown:
		return "DOWN"
	default:
		return "KEEP"
	}
}

// Constraints bound how the downstream controller may reach the
// setpoints. Reset to defaults at the top of every cycle.
type Constraints struct {
	SpeedUp   float64 // max ascent speed, m/s
	SpeedDown float64 // max descent speed, m/s
	TiltDeg   float64 // max tilt from vertical, degrees
	Gear      GearCommand
}

// DefaultConstraints returns the system defaults applied before any
// per-classification override.
func DefaultConstraints() Constraints {
	return Constraints{
		SpeedUp:   DefaultSpeedUp,
		SpeedDown: DefaultSpeedDown,
		TiltDeg:   DefaultTiltMaxDeg,
		Gear:      GearKeep,
	}
}

// Setpoints is the triple handed to the position/attitude controller.
// Thrust is only meaningful during idle and is unconstrained otherwise.
type Setpoints struct {
	Position SetpointVec
	Velocity SetpointVec
	Thrust   SetpointVec
}

// HomePosition is the reference published by the home-position
// collaborator. Z is the home vertical offset in the local NED frame.
type HomePosition struct {
	Z        float64
	AltValid bool
}

// VehicleState is the kinematic snapshot read from the estimator at the
// start of a cycle. Position/velocity are NED, z down. DistBottom is
// the range sensor reading in metres; NaN (or any non-finite value)
// means the sensor is unavailable this cycle.
type VehicleState struct {
	Position   r3.Vec
	Velocity   r3.Vec
	DistBottom float64
	Home       HomePosition
}

// CycleInput is the immutable per-cycle snapshot handed to the
// dispatcher.
type CycleInput struct {
	State  VehicleState
	Type   WaypointType
	Target r3.Vec
	// CruiseSpeed overrides the configured default when > 0 (the
	// mission item may carry its own cruise speed).
	CruiseSpeed float64
}

// CycleResult is the dispatcher output for one cycle.
type CycleResult struct {
	Setpoints      Setpoints
	Constraints    Constraints
	AltAboveGround float64
	Type           WaypointType
}
