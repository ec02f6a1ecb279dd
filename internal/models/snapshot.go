package models

import (
	"encoding/json"
)

// EcoDisplayOffset is the number of degrees subtracted from the heating
// setpoint bounds when the device runs in eco mode. The device applies the
// reduction itself; the offset exists only so displayed bounds match what
// the device will actually regulate to.
const EcoDisplayOffset = 2.0

// RawProduct mirrors the product object returned by
// GET /users/me/products. Only the first product of the list is consumed.
type RawProduct struct {
	SerialNumber         string        `json:"serial_number"`
	Modem                string        `json:"modem"`
	Reference            string        `json:"reference"`
	Type                 string        `json:"type"`
	IsConnected          bool          `json:"isConnected"`
	FilterWear           bool          `json:"usureFiltre"`
	DateLastFilterUpdate string        `json:"dateLastFilterUpdate"`
	LastUpdatedDate      string        `json:"lastUpdatedDate"`
	Indicator            *RawIndicator `json:"indicator"`
	WeekPlanning         []PlanningSlot `json:"week_planning"`
	WeekPlanning2        []PlanningSlot `json:"week_planning2"`
	WeekPlanning3        []PlanningSlot `json:"week_planning3"`
	WeekPlanning4        []PlanningSlot `json:"week_planning4"`
}

// RawIndicator mirrors the nested live-status block of a product.
type RawIndicator struct {
	CurrentAirMode   string       `json:"current_air_mode"`
	CurrentWaterMode string       `json:"current_water_mode"`
	HeatMinSetpoint  float64      `json:"cmist"`
	HeatMaxSetpoint  float64      `json:"cmast"`
	CoolMinSetpoint  float64      `json:"fmist"`
	CoolMaxSetpoint  float64      `json:"fmast"`
	HotWaterQuantity float64      `json:"qte_eau_chaude"`
	MainTemperature  float64      `json:"tmp_principal"`
	Thermostats      []Thermostat `json:"thermostats"`
	Settings         *RawSettings `json:"settings"`
}

// RawSettings mirrors the household settings block of an indicator.
type RawSettings struct {
	People     int     `json:"people"`
	Antilegio  int     `json:"antilegio"`
	KwhPeak    float64 `json:"kwh_pleine"`
	KwhOffPeak float64 `json:"kwh_creuse"`
}

// Thermostat is one room thermostat nested under the device indicator.
// Identifiers are stable across polls and correlate thermostats between
// snapshot generations.
type Thermostat struct {
	ID                 int     `json:"ThermostatId"`
	Name               string  `json:"Name"`
	Number             int     `json:"Number"`
	TemperatureSet     float64 `json:"TemperatureSet"`
	CurrentTemperature float64 `json:"CurrentTemperature"`
}

// PlanningSlot is one record of a weekly planning sequence. The API is not
// consistent here: depending on firmware the slots arrive either as bare
// command strings or as objects carrying a "command" field.
type PlanningSlot struct {
	Command string `json:"command"`
}

// UnmarshalJSON accepts both the string and the object form of a slot.
func (s *PlanningSlot) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Command = str
		return nil
	}
	type alias PlanningSlot
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = PlanningSlot(obj)
	return nil
}

// Settings holds the household composition, antilegionella cycle and
// electricity pricing of a device.
type Settings struct {
	People     int     `json:"people"`
	Antilegio  int     `json:"antilegio"`
	KwhPeak    float64 `json:"kwh_peak"`
	KwhOffPeak float64 `json:"kwh_off_peak"`
}

// Indicator is the parsed live-status block of a device.
type Indicator struct {
	CurrentAirMode   AirMode      `json:"current_air_mode"`
	CurrentWaterMode WaterMode    `json:"current_water_mode"`
	HeatMinSetpoint  float64      `json:"heat_min_setpoint"`
	HeatMaxSetpoint  float64      `json:"heat_max_setpoint"`
	CoolMinSetpoint  float64      `json:"cool_min_setpoint"`
	CoolMaxSetpoint  float64      `json:"cool_max_setpoint"`
	HotWaterQuantity float64      `json:"hot_water_quantity"`
	MainTemperature  float64      `json:"main_room_temperature"`
	Thermostats      []Thermostat `json:"thermostats"`
	Settings         Settings     `json:"settings"`
}

// SetpointBounds returns the allowed target-temperature range for the
// current air mode. Cooling modes use the cooling bounds; eco heating
// shifts both bounds down by the eco offset, applied exactly once here and
// nowhere else.
func (in Indicator) SetpointBounds() (minTemp, maxTemp float64) {
	if in.CurrentAirMode.IsCooling() {
		return in.CoolMinSetpoint, in.CoolMaxSetpoint
	}
	minTemp, maxTemp = in.HeatMinSetpoint, in.HeatMaxSetpoint
	if in.CurrentAirMode == AirModeHeatEco {
		minTemp -= EcoDisplayOffset
		maxTemp -= EcoDisplayOffset
	}
	return minTemp, maxTemp
}

// Thermostat returns the thermostat with the given id, or nil.
func (in Indicator) Thermostat(id int) *Thermostat {
	for i := range in.Thermostats {
		if in.Thermostats[i].ID == id {
			return &in.Thermostats[i]
		}
	}
	return nil
}

// DeviceSnapshot is the coherent read model of one device, rebuilt from
// scratch on every successful fetch. Consumers never observe a partially
// updated snapshot.
type DeviceSnapshot struct {
	SerialNumber         string          `json:"serial_number"`
	Modem                string          `json:"modem"`
	Reference            string          `json:"reference"`
	Type                 string          `json:"type"`
	IsConnected          bool            `json:"is_connected"`
	FilterWear           bool            `json:"filter_wear"`
	DateLastFilterUpdate string          `json:"date_last_filter_update,omitempty"`
	LastUpdatedDate      string          `json:"last_updated_date,omitempty"`
	Indicator            Indicator       `json:"indicator"`
	WeekPlanningHeatA    []PlanningSlot  `json:"week_planning_heat_a,omitempty"`
	WeekPlanningHeatB    []PlanningSlot  `json:"week_planning_heat_b,omitempty"`
	WeekPlanningCoolC    []PlanningSlot  `json:"week_planning_cool_c,omitempty"`
	WeekPlanningCoolD    []PlanningSlot  `json:"week_planning_cool_d,omitempty"`
}

// Planning returns the planning sequence of the given program.
func (s *DeviceSnapshot) Planning(p PlanningProgram) []PlanningSlot {
	switch p {
	case PlanningHeatA:
		return s.WeekPlanningHeatA
	case PlanningHeatB:
		return s.WeekPlanningHeatB
	case PlanningCoolC:
		return s.WeekPlanningCoolC
	case PlanningCoolD:
		return s.WeekPlanningCoolD
	}
	return nil
}

// SetPlanning overwrites the planning sequence of the given program. This
// is the single sanctioned external mutation of a snapshot: a local,
// un-persisted edit performed by the planning editor.
func (s *DeviceSnapshot) SetPlanning(p PlanningProgram, slots []PlanningSlot) {
	switch p {
	case PlanningHeatA:
		s.WeekPlanningHeatA = slots
	case PlanningHeatB:
		s.WeekPlanningHeatB = slots
	case PlanningCoolC:
		s.WeekPlanningCoolC = slots
	case PlanningCoolD:
		s.WeekPlanningCoolD = slots
	}
}

// BuildSnapshot parses a raw product into a snapshot. A nil or partial
// product yields a well-formed disconnected snapshot with empty
// collections and off modes so consumers can render "unknown" instead of
// crashing. Defaulting happens here, once, and nowhere else.
func BuildSnapshot(p *RawProduct) *DeviceSnapshot {
	snap := &DeviceSnapshot{
		Indicator: Indicator{
			CurrentAirMode:   AirModeOff,
			CurrentWaterMode: WaterModeOff,
			Thermostats:      []Thermostat{},
		},
	}
	if p == nil {
		return snap
	}

	snap.SerialNumber = p.SerialNumber
	snap.Modem = p.Modem
	snap.Reference = p.Reference
	snap.Type = p.Type
	snap.IsConnected = p.IsConnected
	snap.FilterWear = p.FilterWear
	snap.DateLastFilterUpdate = p.DateLastFilterUpdate
	snap.LastUpdatedDate = p.LastUpdatedDate
	snap.WeekPlanningHeatA = p.WeekPlanning
	snap.WeekPlanningHeatB = p.WeekPlanning2
	snap.WeekPlanningCoolC = p.WeekPlanning3
	snap.WeekPlanningCoolD = p.WeekPlanning4

	if p.Indicator == nil {
		return snap
	}
	in := p.Indicator
	snap.Indicator.HeatMinSetpoint = in.HeatMinSetpoint
	snap.Indicator.HeatMaxSetpoint = in.HeatMaxSetpoint
	snap.Indicator.CoolMinSetpoint = in.CoolMinSetpoint
	snap.Indicator.CoolMaxSetpoint = in.CoolMaxSetpoint
	snap.Indicator.HotWaterQuantity = in.HotWaterQuantity
	snap.Indicator.MainTemperature = in.MainTemperature
	if mode := AirMode(in.CurrentAirMode); mode.Valid() {
		snap.Indicator.CurrentAirMode = mode
	}
	if mode := WaterMode(in.CurrentWaterMode); mode.Valid() {
		snap.Indicator.CurrentWaterMode = mode
	}
	if len(in.Thermostats) > 0 {
		snap.Indicator.Thermostats = in.Thermostats
	}
	if in.Settings != nil {
		snap.Indicator.Settings = Settings{
			People:     in.Settings.People,
			Antilegio:  in.Settings.Antilegio,
			KwhPeak:    in.Settings.KwhPeak,
			KwhOffPeak: in.Settings.KwhOffPeak,
		}
	}
	return snap
}

// Clone returns a shallow-plus-plannings copy of the snapshot, used by the
// planning editor to keep published snapshots immutable.
func (s *DeviceSnapshot) Clone() *DeviceSnapshot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Indicator.Thermostats = append([]Thermostat(nil), s.Indicator.Thermostats...)
	clone.WeekPlanningHeatA = append([]PlanningSlot(nil), s.WeekPlanningHeatA...)
	clone.WeekPlanningHeatB = append([]PlanningSlot(nil), s.WeekPlanningHeatB...)
	clone.WeekPlanningCoolC = append([]PlanningSlot(nil), s.WeekPlanningCoolC...)
	clone.WeekPlanningCoolD = append([]PlanningSlot(nil), s.WeekPlanningCoolD...)
	return &clone
}
