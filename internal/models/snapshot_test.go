package models

import (
	"encoding/json"
	"testing"
)

func TestBuildSnapshot_NilProductGivesSafeDefaults(t *testing.T) {
	t.Parallel()

	snap := BuildSnapshot(nil)
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.Indicator.CurrentAirMode != AirModeOff {
		t.Errorf("expected air mode %q, got %q", AirModeOff, snap.Indicator.CurrentAirMode)
	}
	if snap.Indicator.CurrentWaterMode != WaterModeOff {
		t.Errorf("expected water mode %q, got %q", WaterModeOff, snap.Indicator.CurrentWaterMode)
	}
	if snap.Indicator.Thermostats == nil {
		t.Error("expected empty thermostat slice, got nil")
	}
	if len(snap.Indicator.Thermostats) != 0 {
		t.Errorf("expected no thermostats, got %d", len(snap.Indicator.Thermostats))
	}
	if snap.IsConnected {
		t.Error("nil product must read as disconnected")
	}
}

func TestBuildSnapshot_MissingIndicatorGivesSafeDefaults(t *testing.T) {
	t.Parallel()

	snap := BuildSnapshot(&RawProduct{Modem: "MODEM-1"})
	if snap.Modem != "MODEM-1" {
		t.Errorf("expected modem preserved, got %q", snap.Modem)
	}
	if snap.Indicator.CurrentAirMode != AirModeOff {
		t.Errorf("expected default air mode, got %q", snap.Indicator.CurrentAirMode)
	}
	if len(snap.Indicator.Thermostats) != 0 {
		t.Errorf("expected no thermostats, got %d", len(snap.Indicator.Thermostats))
	}
}

func TestBuildSnapshot_UnknownModesFallBackToOff(t *testing.T) {
	t.Parallel()

	snap := BuildSnapshot(&RawProduct{
		Indicator: &RawIndicator{
			CurrentAirMode:   "Z",
			CurrentWaterMode: "wat",
		},
	})
	if snap.Indicator.CurrentAirMode != AirModeOff {
		t.Errorf("unknown air mode should fall back to off, got %q", snap.Indicator.CurrentAirMode)
	}
	if snap.Indicator.CurrentWaterMode != WaterModeOff {
		t.Errorf("unknown water mode should fall back to off, got %q", snap.Indicator.CurrentWaterMode)
	}
}

func TestBuildSnapshot_FullProduct(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"serial_number": "SN-42",
		"modem": "MODEM-42",
		"reference": "TONE_AQUAAIR",
		"type": "AQUA_AIR",
		"isConnected": true,
		"usureFiltre": true,
		"indicator": {
			"current_air_mode": "B",
			"current_water_mode": "M",
			"cmist": 16, "cmast": 28,
			"fmist": 22, "fmast": 31,
			"qte_eau_chaude": 55,
			"tmp_principal": 21.5,
			"thermostats": [
				{"ThermostatId": 7, "Name": "Salon", "Number": 1, "TemperatureSet": 20, "CurrentTemperature": 19.5}
			],
			"settings": {"people": 4, "antilegio": 1, "kwh_pleine": 0.1897, "kwh_creuse": 0.1423}
		},
		"week_planning": ["B", {"command": "C"}]
	}`)

	var raw RawProduct
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal product: %v", err)
	}
	snap := BuildSnapshot(&raw)

	if !snap.IsConnected {
		t.Error("expected connected device")
	}
	if !snap.FilterWear {
		t.Error("expected filter wear flag set")
	}
	if snap.Indicator.CurrentAirMode != AirModeHeatComfort {
		t.Errorf("expected air mode B, got %q", snap.Indicator.CurrentAirMode)
	}
	if snap.Indicator.CurrentWaterMode != WaterModeOn {
		t.Errorf("expected water mode M, got %q", snap.Indicator.CurrentWaterMode)
	}
	th := snap.Indicator.Thermostat(7)
	if th == nil {
		t.Fatal("expected thermostat 7")
	}
	if th.Name != "Salon" || th.TemperatureSet != 20 {
		t.Errorf("unexpected thermostat: %+v", th)
	}
	if snap.Indicator.Settings.People != 4 {
		t.Errorf("expected 4 people, got %d", snap.Indicator.Settings.People)
	}
	slots := snap.Planning(PlanningHeatA)
	if len(slots) != 2 || slots[0].Command != "B" || slots[1].Command != "C" {
		t.Errorf("unexpected planning slots: %+v", slots)
	}
}

func TestPlanningSlot_UnmarshalBothForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare string", `"B"`, "B"},
		{"object form", `{"command":"C"}`, "C"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var s PlanningSlot
			if err := json.Unmarshal([]byte(tc.in), &s); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if s.Command != tc.want {
				t.Errorf("expected command %q, got %q", tc.want, s.Command)
			}
		})
	}
}

func TestIndicator_SetpointBounds(t *testing.T) {
	t.Parallel()

	base := Indicator{
		HeatMinSetpoint: 16, HeatMaxSetpoint: 28,
		CoolMinSetpoint: 22, CoolMaxSetpoint: 31,
	}

	cases := []struct {
		name    string
		mode    AirMode
		wantMin float64
		wantMax float64
	}{
		{"heat comfort uses heat bounds", AirModeHeatComfort, 16, 28},
		{"heat eco shifts both bounds down", AirModeHeatEco, 14, 26},
		{"cool comfort uses cool bounds", AirModeCoolComfort, 22, 31},
		{"cool boost uses cool bounds", AirModeCoolBoost, 22, 31},
		{"off uses heat bounds", AirModeOff, 16, 28},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := base
			in.CurrentAirMode = tc.mode
			minTemp, maxTemp := in.SetpointBounds()
			if minTemp != tc.wantMin || maxTemp != tc.wantMax {
				t.Errorf("got [%v, %v], want [%v, %v]", minTemp, maxTemp, tc.wantMin, tc.wantMax)
			}
		})
	}
}

func TestDeviceSnapshot_SetPlanningAndClone(t *testing.T) {
	t.Parallel()

	snap := BuildSnapshot(&RawProduct{Modem: "M"})
	snap.SetPlanning(PlanningCoolC, []PlanningSlot{{Command: "F"}})

	clone := snap.Clone()
	clone.SetPlanning(PlanningCoolC, []PlanningSlot{{Command: "G"}, {Command: "G"}})

	if len(snap.Planning(PlanningCoolC)) != 1 {
		t.Error("mutating the clone leaked into the original")
	}
	if len(clone.Planning(PlanningCoolC)) != 2 {
		t.Error("clone did not take the new planning")
	}
}
