package models

import "github.com/google/uuid"

// TemperatureCommand is one queued target-temperature change. Commands are
// immutable once enqueued and consumed exactly once by the queue worker.
type TemperatureCommand struct {
	ID             uuid.UUID `json:"id"`
	Modem          string    `json:"modem"`
	ThermostatID   int       `json:"thermostat_id"`
	ThermostatName string    `json:"thermostat_name"`
	Target         float64   `json:"target"`
}

// Valid reports whether every business field carries a usable value. The
// worker drops invalid commands without issuing an HTTP call.
func (c TemperatureCommand) Valid() bool {
	return c.Modem != "" && c.ThermostatID != 0 && c.ThermostatName != "" && c.Target != 0
}
