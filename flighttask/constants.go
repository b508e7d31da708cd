package flighttask

// Defaults mirrored from the C++ flight stack parameter set.
const (
	DefaultSpeedUp    = 3.0  // MPC_Z_VEL_MAX_UP
	DefaultSpeedDown  = 1.0  // MPC_Z_VEL_MAX_DN
	DefaultTiltMaxDeg = 45.0 // MPC_TILTMAX_AIR

	DefaultLandSpeed      = 0.7  // MPC_LAND_SPEED
	DefaultTiltMaxLandDeg = 12.0 // MPC_TILTMAX_LND
	DefaultTakeoffSpeed   = 1.5  // MPC_TKO_SPEED
	DefaultLandAlt1       = 10.0 // MPC_LAND_ALT1
	DefaultLandAlt2       = 5.0  // MPC_LAND_ALT2
	DefaultCruiseSpeed    = 5.0  // MPC_XY_CRUISE

	// Gear retracts once the vehicle is clear of the ground by this
	// margin, regardless of the active policy.
	GearUpAltitude = 2.0
)

// clamp returns x within [min, max].
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// gradual interpolates linearly from yLow at xLow to yHigh at xHigh and
// saturates outside that range.
func gradual(x, xLow, xHigh, yLow, yHigh float64) float64 {
	if x <= xLow {
		return yLow
	}
	if x >= xHigh {
		return yHigh
	}
	return yLow + (x-xLow)*(yHigh-yLow)/(xHigh-xLow)
}

// maxF returns the larger of two float64.
func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
