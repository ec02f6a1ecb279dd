package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tiagfernandes/aldes-bridge/internal/aldes"
	"github.com/tiagfernandes/aldes-bridge/internal/coordinator"
	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

// stubAPI records device-API calls without touching the network.
type stubAPI struct {
	modeCalls []struct {
		modem  string
		mode   string
		target aldes.CommandID
	}
	planningCalls []struct {
		modem, planning, variant string
	}
	holidayParams []string
	cancels       int
	frostStarts   []string
	prices        []struct{ peak, offPeak float64 }
	people        []string
	cycles        []string
	tempCalls     []struct {
		modem, name  string
		thermostatID int
		target       float64
	}
	filterResets int
	statsCalls   []string

	err error
}

func (s *stubAPI) ChangeMode(ctx context.Context, modem, mode string, target aldes.CommandID) (json.RawMessage, error) {
	s.modeCalls = append(s.modeCalls, struct {
		modem  string
		mode   string
		target aldes.CommandID
	}{modem, mode, target})
	return nil, s.err
}

func (s *stubAPI) ChangeWeekPlanning(ctx context.Context, modem, planning, variant string) (json.RawMessage, error) {
	s.planningCalls = append(s.planningCalls, struct {
		modem, planning, variant string
	}{modem, planning, variant})
	return nil, s.err
}

func (s *stubAPI) SetHolidaysMode(ctx context.Context, modem, startDate, endDate string) (json.RawMessage, error) {
	s.holidayParams = append(s.holidayParams, startDate+"|"+endDate)
	return nil, s.err
}

func (s *stubAPI) CancelHolidaysMode(ctx context.Context, modem string) (json.RawMessage, error) {
	s.cancels++
	return nil, s.err
}

func (s *stubAPI) SetFrostProtectionMode(ctx context.Context, modem, startDate string) (json.RawMessage, error) {
	s.frostStarts = append(s.frostStarts, startDate)
	return nil, s.err
}

func (s *stubAPI) SetKwhPrices(ctx context.Context, modem string, peak, offPeak float64) (json.RawMessage, error) {
	s.prices = append(s.prices, struct{ peak, offPeak float64 }{peak, offPeak})
	return nil, s.err
}

func (s *stubAPI) ChangePeople(ctx context.Context, modem, people string) (json.RawMessage, error) {
	s.people = append(s.people, people)
	return nil, s.err
}

func (s *stubAPI) ChangeAntilegio(ctx context.Context, modem, cycle string) (json.RawMessage, error) {
	s.cycles = append(s.cycles, cycle)
	return nil, s.err
}

func (s *stubAPI) SetTargetTemperature(modem string, thermostatID int, thermostatName string, target float64) uuid.UUID {
	s.tempCalls = append(s.tempCalls, struct {
		modem, name  string
		thermostatID int
		target       float64
	}{modem, thermostatName, thermostatID, target})
	return uuid.New()
}

func (s *stubAPI) ResetFilter(ctx context.Context, modem string) (json.RawMessage, error) {
	s.filterResets++
	return nil, s.err
}

func (s *stubAPI) GetStatistics(ctx context.Context, modem, startDate, endDate, granularity string) json.RawMessage {
	s.statsCalls = append(s.statsCalls, startDate+"|"+endDate+"|"+granularity)
	return json.RawMessage(`[]`)
}

// stubCoordinator serves a fixed snapshot and records verification arms.
type stubCoordinator struct {
	snap         *models.DeviceSnapshot
	skips        int
	verified     []string
	overwrites   int
	overwriteErr error
}

func (s *stubCoordinator) Snapshot() *models.DeviceSnapshot { return s.snap }
func (s *stubCoordinator) SkipNextUpdate()                  { s.skips++ }
func (s *stubCoordinator) ScheduleVerification(control string, delay time.Duration, check coordinator.VerifyCheck, resend coordinator.VerifyResend) {
	s.verified = append(s.verified, control)
}
func (s *stubCoordinator) OverwritePlanning(program models.PlanningProgram, slots []models.PlanningSlot) error {
	s.overwrites++
	return s.overwriteErr
}

func readySnapshot() *models.DeviceSnapshot {
	snap := models.BuildSnapshot(&models.RawProduct{Modem: "MODEM-1"})
	snap.Indicator.Thermostats = []models.Thermostat{
		{ID: 7, Name: "Salon", TemperatureSet: 20},
	}
	return snap
}

func newDeviceFixture(snap *models.DeviceSnapshot) (*DeviceService, *stubAPI, *stubCoordinator) {
	api := &stubAPI{}
	coord := &stubCoordinator{snap: snap}
	return NewDeviceService(api, coord, logger.Get(logger.ErrorLevel)), api, coord
}

func TestWireTime(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 8, 1, 14, 30, 5, 0, time.UTC)
	if got := wireTime(ts); got != "20260801143005Z" {
		t.Errorf("unexpected wire time %q", got)
	}

	// Non-UTC inputs are converted before formatting.
	paris := time.FixedZone("CEST", 2*60*60)
	ts = time.Date(2026, 8, 1, 16, 30, 5, 0, paris)
	if got := wireTime(ts); got != "20260801143005Z" {
		t.Errorf("expected UTC conversion, got %q", got)
	}
}

func TestSetAirMode(t *testing.T) {
	t.Parallel()

	svc, api, coord := newDeviceFixture(readySnapshot())
	if err := svc.SetAirMode(context.Background(), "B"); err != nil {
		t.Fatalf("SetAirMode: %v", err)
	}
	if len(api.modeCalls) != 1 {
		t.Fatalf("expected 1 mode call, got %d", len(api.modeCalls))
	}
	call := api.modeCalls[0]
	if call.modem != "MODEM-1" || call.mode != "B" || call.target != aldes.CommandAir {
		t.Errorf("unexpected call %+v", call)
	}
	if coord.skips != 1 {
		t.Errorf("expected 1 skip-next, got %d", coord.skips)
	}
	if len(coord.verified) != 1 || coord.verified[0] != "air-mode" {
		t.Errorf("expected air-mode verification, got %v", coord.verified)
	}
}

func TestSetAirMode_InvalidMode(t *testing.T) {
	t.Parallel()

	svc, api, coord := newDeviceFixture(readySnapshot())
	err := svc.SetAirMode(context.Background(), "Z")
	if !errors.Is(err, ErrInvalidAirMode) {
		t.Fatalf("expected ErrInvalidAirMode, got %v", err)
	}
	if len(api.modeCalls) != 0 {
		t.Error("invalid mode must not reach the API")
	}
	if coord.skips != 0 {
		t.Error("invalid mode must not arm skip-next")
	}
}

func TestSetAirMode_DeviceNotReady(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDeviceFixture(nil)
	err := svc.SetAirMode(context.Background(), "B")
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestSetAirMode_UpstreamErrorSkipsOptimism(t *testing.T) {
	t.Parallel()

	svc, api, coord := newDeviceFixture(readySnapshot())
	api.err = errors.New("cloud down")
	if err := svc.SetAirMode(context.Background(), "B"); err == nil {
		t.Fatal("expected upstream error to surface")
	}
	if coord.skips != 0 || len(coord.verified) != 0 {
		t.Error("failed write must not arm skip-next or verification")
	}
}

func TestSetWaterMode(t *testing.T) {
	t.Parallel()

	svc, api, coord := newDeviceFixture(readySnapshot())
	if err := svc.SetWaterMode(context.Background(), "N"); err != nil {
		t.Fatalf("SetWaterMode: %v", err)
	}
	call := api.modeCalls[0]
	if call.mode != "N" || call.target != aldes.CommandHotWater {
		t.Errorf("unexpected call %+v", call)
	}
	if len(coord.verified) != 1 || coord.verified[0] != "water-mode" {
		t.Errorf("expected water-mode verification, got %v", coord.verified)
	}

	if err := svc.SetWaterMode(context.Background(), "B"); !errors.Is(err, ErrInvalidWaterMode) {
		t.Errorf("air letter is not a water mode, got %v", err)
	}
}

func TestQueueTemperature(t *testing.T) {
	t.Parallel()

	svc, api, coord := newDeviceFixture(readySnapshot())
	id, err := svc.QueueTemperature(7, 21.5)
	if err != nil {
		t.Fatalf("QueueTemperature: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected a command id")
	}
	if len(api.tempCalls) != 1 {
		t.Fatalf("expected 1 enqueue, got %d", len(api.tempCalls))
	}
	call := api.tempCalls[0]
	if call.modem != "MODEM-1" || call.thermostatID != 7 || call.name != "Salon" || call.target != 21.5 {
		t.Errorf("unexpected enqueue %+v", call)
	}
	if len(coord.verified) != 1 || coord.verified[0] != "thermostat-7" {
		t.Errorf("expected thermostat verification, got %v", coord.verified)
	}
}

func TestQueueTemperature_UnknownThermostat(t *testing.T) {
	t.Parallel()

	svc, api, _ := newDeviceFixture(readySnapshot())
	_, err := svc.QueueTemperature(99, 21)
	if !errors.Is(err, ErrUnknownThermostat) {
		t.Fatalf("expected ErrUnknownThermostat, got %v", err)
	}
	if len(api.tempCalls) != 0 {
		t.Error("unknown thermostat must not be enqueued")
	}
}

func TestSetHolidays(t *testing.T) {
	t.Parallel()

	svc, api, _ := newDeviceFixture(readySnapshot())
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if err := svc.SetHolidays(context.Background(), start, end); err != nil {
		t.Fatalf("SetHolidays: %v", err)
	}
	if len(api.holidayParams) != 1 || api.holidayParams[0] != "20260801000000Z|20260815000000Z" {
		t.Errorf("unexpected holiday dates %v", api.holidayParams)
	}

	if err := svc.SetHolidays(context.Background(), end, start); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange for inverted window, got %v", err)
	}
}

func TestSetKwhPrices_Validation(t *testing.T) {
	t.Parallel()

	svc, api, _ := newDeviceFixture(readySnapshot())
	if err := svc.SetKwhPrices(context.Background(), 0.1897, 0.1423); err != nil {
		t.Fatalf("SetKwhPrices: %v", err)
	}
	if len(api.prices) != 1 || api.prices[0].peak != 0.1897 {
		t.Errorf("unexpected prices %v", api.prices)
	}

	if err := svc.SetKwhPrices(context.Background(), 0, 0.1); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if err := svc.SetKwhPrices(context.Background(), 0.1, -1); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestSetWeekPlanning_VariantValidation(t *testing.T) {
	t.Parallel()

	svc, api, _ := newDeviceFixture(readySnapshot())
	if err := svc.SetWeekPlanning(context.Background(), "A", "BBBCCC"); err != nil {
		t.Fatalf("SetWeekPlanning: %v", err)
	}
	if len(api.planningCalls) != 1 || api.planningCalls[0].variant != "A" {
		t.Errorf("unexpected planning calls %v", api.planningCalls)
	}

	if err := svc.SetWeekPlanning(context.Background(), "C", "BBB"); !errors.Is(err, ErrInvalidVariant) {
		t.Errorf("expected ErrInvalidVariant, got %v", err)
	}
}

func TestOverwritePlanning_ProgramValidation(t *testing.T) {
	t.Parallel()

	svc, _, coord := newDeviceFixture(readySnapshot())
	if err := svc.OverwritePlanning(models.PlanningHeatA, nil); err != nil {
		t.Fatalf("OverwritePlanning: %v", err)
	}
	if coord.overwrites != 1 {
		t.Errorf("expected 1 overwrite, got %d", coord.overwrites)
	}

	err := svc.OverwritePlanning(models.PlanningProgram("bogus"), nil)
	if !errors.Is(err, ErrInvalidProgram) {
		t.Fatalf("expected ErrInvalidProgram, got %v", err)
	}
	if coord.overwrites != 1 {
		t.Error("invalid program must not reach the coordinator")
	}
}

func TestResetFilterAndSettings(t *testing.T) {
	t.Parallel()

	svc, api, _ := newDeviceFixture(readySnapshot())
	ctx := context.Background()

	if err := svc.ResetFilter(ctx); err != nil {
		t.Fatalf("ResetFilter: %v", err)
	}
	if err := svc.SetHousehold(ctx, "4"); err != nil {
		t.Fatalf("SetHousehold: %v", err)
	}
	if err := svc.SetAntilegionella(ctx, "1"); err != nil {
		t.Fatalf("SetAntilegionella: %v", err)
	}
	if err := svc.CancelHolidays(ctx); err != nil {
		t.Fatalf("CancelHolidays: %v", err)
	}

	if api.filterResets != 1 || len(api.people) != 1 || len(api.cycles) != 1 || api.cancels != 1 {
		t.Errorf("unexpected call counts: %+v", api)
	}
}

func TestStatisticsService(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	coord := &stubCoordinator{snap: readySnapshot()}
	svc := NewStatisticsService(api, coord)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	body, err := svc.Statistics(ctx, start, end, "day")
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if string(body) != `[]` {
		t.Errorf("unexpected body %s", body)
	}
	if len(api.statsCalls) != 1 || api.statsCalls[0] != "20260801000000Z|20260831000000Z|day" {
		t.Errorf("unexpected stats call %v", api.statsCalls)
	}

	if _, err := svc.Statistics(ctx, start, end, "hour"); !errors.Is(err, ErrInvalidGranularity) {
		t.Errorf("expected ErrInvalidGranularity, got %v", err)
	}
	if _, err := svc.Statistics(ctx, end, start, "day"); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}

	empty := NewStatisticsService(api, &stubCoordinator{})
	if _, err := empty.Statistics(ctx, start, end, "day"); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}
