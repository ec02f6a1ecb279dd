package models

// AirMode is the enumerated operating state of the air (heating/cooling)
// subsystem as reported and accepted by the Aldes cloud API.
type AirMode string

const (
	AirModeOff         AirMode = "A"
	AirModeHeatComfort AirMode = "B"
	AirModeHeatEco     AirMode = "C"
	AirModeHeatProgA   AirMode = "D"
	AirModeHeatProgB   AirMode = "E"
	AirModeCoolComfort AirMode = "F"
	AirModeCoolBoost   AirMode = "G"
	AirModeCoolProgA   AirMode = "H"
	AirModeCoolProgB   AirMode = "I"
)

// Valid reports whether the mode is one of the known air modes.
func (m AirMode) Valid() bool {
	switch m {
	case AirModeOff, AirModeHeatComfort, AirModeHeatEco, AirModeHeatProgA,
		AirModeHeatProgB, AirModeCoolComfort, AirModeCoolBoost,
		AirModeCoolProgA, AirModeCoolProgB:
		return true
	}
	return false
}

// IsCooling reports whether the mode drives the cooling circuit.
func (m AirMode) IsCooling() bool {
	switch m {
	case AirModeCoolComfort, AirModeCoolBoost, AirModeCoolProgA, AirModeCoolProgB:
		return true
	}
	return false
}

// WaterMode is the enumerated operating state of the hot-water subsystem.
type WaterMode string

const (
	WaterModeOff   WaterMode = "L"
	WaterModeOn    WaterMode = "M"
	WaterModeBoost WaterMode = "N"
)

// Valid reports whether the mode is one of the known hot-water modes.
func (m WaterMode) Valid() bool {
	switch m {
	case WaterModeOff, WaterModeOn, WaterModeBoost:
		return true
	}
	return false
}

// PlanningProgram identifies one of the four independently addressable
// weekly planning programs.
type PlanningProgram string

const (
	PlanningHeatA PlanningProgram = "heat-a"
	PlanningHeatB PlanningProgram = "heat-b"
	PlanningCoolC PlanningProgram = "cool-c"
	PlanningCoolD PlanningProgram = "cool-d"
)

// Valid reports whether the program is one of the four known programs.
func (p PlanningProgram) Valid() bool {
	switch p {
	case PlanningHeatA, PlanningHeatB, PlanningCoolC, PlanningCoolD:
		return true
	}
	return false
}
