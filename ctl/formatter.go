package ctl

import (
	"fmt"
	"strings"
	"time"

	"autopilot-go/flighttask"
)

// Downstream line protocol: a 12-character "setpnts:   ," header whose
// three spaces are patched with the decimal record length, then
// comma-separated fields, CRLF-terminated. Unconstrained axes are
// written as "nan", which the controller side maps back to the NaN
// sentinel.

func axisStr(a flighttask.Axis) string {
	if !a.Engaged {
		return "nan"
	}
	return fmt.Sprintf("%.3f", a.Value)
}

func vecStr(v flighttask.SetpointVec) string {
	return fmt.Sprintf("%s,%s,%s", axisStr(v.X), axisStr(v.Y), axisStr(v.Z))
}

// FormatSetpoint formats one cycle's setpoint triple.
func FormatSetpoint(id uint32, ts int64, seq uint16, sp flighttask.Setpoints) []byte {
	t := time.UnixMilli(ts)
	timeStr := t.Format("20060102150405.000")
	idStr := fmt.Sprintf("%08X", id)

	body := fmt.Sprintf("setpnts:   ,%s,%d,%s,%s,%s,%s\r\n",
		idStr, seq, timeStr,
		vecStr(sp.Position), vecStr(sp.Velocity), vecStr(sp.Thrust))

	return fillLengthField([]byte(body))
}

// FormatConstraints formats one cycle's constraint set for the
// controller and the gear actuator driver.
func FormatConstraints(id uint32, ts int64, seq uint16, c flighttask.Constraints) []byte {
	t := time.UnixMilli(ts)
	timeStr := t.Format("20060102150405.000")
	idStr := fmt.Sprintf("%08X", id)

	body := fmt.Sprintf("constrs:   ,%s,%d,%s,%.3f,%.3f,%.1f,%s\r\n",
		idStr, seq, timeStr,
		c.SpeedUp, c.SpeedDown, c.TiltDeg, strings.ToLower(c.Gear.String()))

	return fillLengthField([]byte(body))
}

// fillLengthField patches the record length into header bytes 8..10.
func fillLengthField(b []byte) []byte {
	n := len(b)
	if n >= 100 {
		b[8] = byte('0' + (n / 100))
	}
	b[9] = byte('0' + ((n / 10) % 10))
	b[10] = byte('0' + (n % 10))
	return b
}
