package ctl

// Flag masks selecting which message classes a target receives.
const (
	FlagSetpoint   = 1
	FlagConstraint = 2
	FlagStatus     = 4
)
