package flighttask

// Params are the externally tuned scalars consumed by the dispatcher.
// They may change between cycles; Sanitize must run after every reload.
type Params struct {
	LandSpeed      float64 // descent speed during land, m/s
	TiltMaxLandDeg float64 // tilt limit during land, degrees
	TakeoffSpeed   float64 // full ascent speed during takeoff, m/s
	LandAlt1       float64 // upper altitude threshold, m
	LandAlt2       float64 // lower altitude threshold, m
	CruiseSpeed    float64 // default horizontal cruise speed, m/s
}

// DefaultParams returns the built-in parameter set.
func DefaultParams() Params {
	return Params{
		LandSpeed:      DefaultLandSpeed,
		TiltMaxLandDeg: DefaultTiltMaxLandDeg,
		TakeoffSpeed:   DefaultTakeoffSpeed,
		LandAlt1:       DefaultLandAlt1,
		LandAlt2:       DefaultLandAlt2,
		CruiseSpeed:    DefaultCruiseSpeed,
	}
}

// Sanitize enforces LandAlt1 >= LandAlt2 by raising LandAlt1. Operators
// may edit either threshold independently, so this runs on every
// parameter load, not just the first.
func (p *Params) Sanitize() {
	p.LandAlt1 = maxF(p.LandAlt1, p.LandAlt2)
}
