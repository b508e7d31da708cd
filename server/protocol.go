package server

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"autopilot-go/flighttask"
)

// Telemetry wire format: every frame is a 9-byte header followed by a
// little-endian payload. Frames may be concatenated in one UDP packet.
//
//	magic(2) addr(4) type(1) body_len(2)
const (
	TelemMagic  = 0x5841
	TelemHdrLen = 9

	TypeStateFrame      = 0x50 // pos xyz, vel xyz (6 x float32)
	TypeWaypointFrame   = 0x52 // waypoint type (1), target xyz (3 x float32), cruise (float32)
	TypeDistBottomFrame = 0x60 // range to ground (float32)
	TypeHomeFrame       = 0x61 // flags (1, bit0 = alt valid), home z (float32)
	TypeParamFrame      = 0x90 // land speed, land tilt, tko speed, alt1, alt2, cruise (6 x float32)

	stateFrameLen      = 24
	waypointFrameLen   = 17
	distBottomFrameLen = 4
	homeFrameLen       = 5
	paramFrameLen      = 24
)

// TelemHeader is the parsed frame header.
type TelemHeader struct {
	Magic   uint16
	Addr    uint32
	Type    uint8
	BodyLen int
}

// StateFrame is the estimator's kinematic snapshot.
type StateFrame struct {
	Position r3.Vec
	Velocity r3.Vec
}

// WaypointFrame is the navigation layer's current command.
type WaypointFrame struct {
	Type   flighttask.WaypointType
	Target r3.Vec
	Cruise float64
}

// HomeFrame is the home-position reference.
type HomeFrame struct {
	Home flighttask.HomePosition
}

// ParseHeader parses the frame header at the start of data.
func ParseHeader(data []byte) (*TelemHeader, error) {
	if len(data) < TelemHdrLen {
		return nil, fmt.Errorf("frame too short")
	}
	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != TelemMagic {
		return nil, fmt.Errorf("invalid magic: 0x%x", magic)
	}
	return &TelemHeader{
		Magic:   magic,
		Addr:    binary.LittleEndian.Uint32(data[2:6]),
		Type:    data[6],
		BodyLen: int(binary.LittleEndian.Uint16(data[7:9])),
	}, nil
}

// PackFrame wraps a body in the telemetry header.
func PackFrame(addr uint32, typ uint8, body []byte) []byte {
	out := make([]byte, TelemHdrLen+len(body))
	binary.LittleEndian.PutUint16(out[0:2], TelemMagic)
	binary.LittleEndian.PutUint32(out[2:6], addr)
	out[6] = typ
	binary.LittleEndian.PutUint16(out[7:9], uint16(len(body)))
	copy(out[TelemHdrLen:], body)
	return out
}

func f32(body []byte, i int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(body[i : i+4])))
}

func putF32(body []byte, i int, v float64) {
	binary.LittleEndian.PutUint32(body[i:i+4], math.Float32bits(float32(v)))
}

func ParseStateFrame(body []byte) (*StateFrame, error) {
	if len(body) < stateFrameLen {
		return nil, fmt.Errorf("state frame too short")
	}
	return &StateFrame{
		Position: r3.Vec{X: f32(body, 0), Y: f32(body, 4), Z: f32(body, 8)},
		Velocity: r3.Vec{X: f32(body, 12), Y: f32(body, 16), Z: f32(body, 20)},
	}, nil
}

func PackStateFrame(addr uint32, pos, vel r3.Vec) []byte {
	body := make([]byte, stateFrameLen)
	putF32(body, 0, pos.X)
	putF32(body, 4, pos.Y)
	putF32(body, 8, pos.Z)
	putF32(body, 12, vel.X)
	putF32(body, 16, vel.Y)
	putF32(body, 20, vel.Z)
	return PackFrame(addr, TypeStateFrame, body)
}

func ParseWaypointFrame(body []byte) (*WaypointFrame, error) {
	if len(body) < waypointFrameLen {
		return nil, fmt.Errorf("waypoint frame too short")
	}
	typ := flighttask.WaypointType(body[0])
	if typ < flighttask.WaypointIdle || typ > flighttask.WaypointLand {
		return nil, fmt.Errorf("unknown waypoint type %d", body[0])
	}
	return &WaypointFrame{
		Type:   typ,
		Target: r3.Vec{X: f32(body, 1), Y: f32(body, 5), Z: f32(body, 9)},
		Cruise: f32(body, 13),
	}, nil
}

func PackWaypointFrame(addr uint32, typ flighttask.WaypointType, target r3.Vec, cruise float64) []byte {
	body := make([]byte, waypointFrameLen)
	body[0] = uint8(typ)
	putF32(body, 1, target.X)
	putF32(body, 5, target.Y)
	putF32(body, 9, target.Z)
	putF32(body, 13, cruise)
	return PackFrame(addr, TypeWaypointFrame, body)
}

// ParseDistBottomFrame returns the range reading. Negative or
// non-finite readings mean the sensor is unavailable and come back as
// NaN; that is a normal condition, not an error.
func ParseDistBottomFrame(body []byte) (float64, error) {
	if len(body) < distBottomFrameLen {
		return 0, fmt.Errorf("dist-bottom frame too short")
	}
	v := f32(body, 0)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return math.NaN(), nil
	}
	return v, nil
}

func PackDistBottomFrame(addr uint32, dist float64) []byte {
	body := make([]byte, distBottomFrameLen)
	putF32(body, 0, dist)
	return PackFrame(addr, TypeDistBottomFrame, body)
}

func ParseHomeFrame(body []byte) (*HomeFrame, error) {
	if len(body) < homeFrameLen {
		return nil, fmt.Errorf("home frame too short")
	}
	return &HomeFrame{
		Home: flighttask.HomePosition{
			AltValid: body[0]&0x1 != 0,
			Z:        f32(body, 1),
		},
	}, nil
}

func PackHomeFrame(addr uint32, home flighttask.HomePosition) []byte {
	body := make([]byte, homeFrameLen)
	if home.AltValid {
		body[0] = 0x1
	}
	putF32(body, 1, home.Z)
	return PackFrame(addr, TypeHomeFrame, body)
}

func ParseParamFrame(body []byte) (*flighttask.Params, error) {
	if len(body) < paramFrameLen {
		return nil, fmt.Errorf("param frame too short")
	}
	p := flighttask.Params{
		LandSpeed:      f32(body, 0),
		TiltMaxLandDeg: f32(body, 4),
		TakeoffSpeed:   f32(body, 8),
		LandAlt1:       f32(body, 12),
		LandAlt2:       f32(body, 16),
		CruiseSpeed:    f32(body, 20),
	}
	return &p, nil
}

func PackParamFrame(addr uint32, p flighttask.Params) []byte {
	body := make([]byte, paramFrameLen)
	putF32(body, 0, p.LandSpeed)
	putF32(body, 4, p.TiltMaxLandDeg)
	putF32(body, 8, p.TakeoffSpeed)
	putF32(body, 12, p.LandAlt1)
	putF32(body, 16, p.LandAlt2)
	putF32(body, 20, p.CruiseSpeed)
	return PackFrame(addr, TypeParamFrame, body)
}
