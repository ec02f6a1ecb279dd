package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tiagfernandes/aldes-bridge/internal/aldes"
	"github.com/tiagfernandes/aldes-bridge/internal/coordinator"
	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

// wireTimeLayout is the date format the device firmware expects.
const wireTimeLayout = "20060102150405Z"

// Validation errors surfaced to the HTTP layer as bad requests.
var (
	ErrDeviceUnavailable = errors.New("device snapshot not available yet")
	ErrInvalidAirMode    = errors.New("invalid air mode")
	ErrInvalidWaterMode  = errors.New("invalid water mode")
	ErrInvalidDateRange  = errors.New("start date must be before end date")
	ErrInvalidPrice      = errors.New("prices must be positive")
	ErrUnknownThermostat = errors.New("unknown thermostat")
	ErrInvalidVariant    = errors.New("planning variant must be A or B")
	ErrInvalidProgram    = errors.New("unknown planning program")
)

// deviceCoordinator is the slice of the coordinator the device service
// uses.
type deviceCoordinator interface {
	Snapshot() *models.DeviceSnapshot
	SkipNextUpdate()
	ScheduleVerification(control string, delay time.Duration, check coordinator.VerifyCheck, resend coordinator.VerifyResend)
	OverwritePlanning(program models.PlanningProgram, slots []models.PlanningSlot) error
}

// DeviceService validates inputs, resolves the device modem off the
// current snapshot and delegates to the API client.
type DeviceService struct {
	api   deviceAPI
	coord deviceCoordinator
	log   *logger.Logger
}

func NewDeviceService(api deviceAPI, coord deviceCoordinator, log *logger.Logger) *DeviceService {
	return &DeviceService{api: api, coord: coord, log: log}
}

// modem resolves the device identifier from the published snapshot.
func (s *DeviceService) modem() (string, error) {
	snap := s.coord.Snapshot()
	if snap == nil || snap.Modem == "" {
		return "", ErrDeviceUnavailable
	}
	return snap.Modem, nil
}

// SetAirMode changes the air subsystem mode. The write is optimistic: the
// next poll is skipped and a delayed verification re-sends the command
// once if the device does not report the new mode.
func (s *DeviceService) SetAirMode(ctx context.Context, mode string) error {
	airMode := models.AirMode(mode)
	if !airMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAirMode, mode)
	}
	modem, err := s.modem()
	if err != nil {
		return err
	}
	if _, err := s.api.ChangeMode(ctx, modem, mode, aldes.CommandAir); err != nil {
		return err
	}
	s.coord.SkipNextUpdate()
	s.coord.ScheduleVerification("air-mode", 0,
		func(snap *models.DeviceSnapshot) bool {
			return snap.Indicator.CurrentAirMode == airMode
		},
		func(ctx context.Context) error {
			_, err := s.api.ChangeMode(ctx, modem, mode, aldes.CommandAir)
			return err
		})
	return nil
}

// SetWaterMode changes the hot-water subsystem mode, with the same
// optimistic-write handling as SetAirMode.
func (s *DeviceService) SetWaterMode(ctx context.Context, mode string) error {
	waterMode := models.WaterMode(mode)
	if !waterMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidWaterMode, mode)
	}
	modem, err := s.modem()
	if err != nil {
		return err
	}
	if _, err := s.api.ChangeMode(ctx, modem, mode, aldes.CommandHotWater); err != nil {
		return err
	}
	s.coord.SkipNextUpdate()
	s.coord.ScheduleVerification("water-mode", 0,
		func(snap *models.DeviceSnapshot) bool {
			return snap.Indicator.CurrentWaterMode == waterMode
		},
		func(ctx context.Context) error {
			_, err := s.api.ChangeMode(ctx, modem, mode, aldes.CommandHotWater)
			return err
		})
	return nil
}

// QueueTemperature enqueues a target-temperature change for the named
// thermostat. The change is asynchronous; the returned id correlates the
// request with worker log lines.
func (s *DeviceService) QueueTemperature(thermostatID int, target float64) (uuid.UUID, error) {
	snap := s.coord.Snapshot()
	if snap == nil || snap.Modem == "" {
		return uuid.Nil, ErrDeviceUnavailable
	}
	thermostat := snap.Indicator.Thermostat(thermostatID)
	if thermostat == nil {
		return uuid.Nil, fmt.Errorf("%w: id %d", ErrUnknownThermostat, thermostatID)
	}

	modem, name := snap.Modem, thermostat.Name
	id := s.api.SetTargetTemperature(modem, thermostatID, name, target)

	control := fmt.Sprintf("thermostat-%d", thermostatID)
	s.coord.ScheduleVerification(control, 0,
		func(snap *models.DeviceSnapshot) bool {
			t := snap.Indicator.Thermostat(thermostatID)
			return t != nil && t.TemperatureSet == target
		},
		func(context.Context) error {
			s.api.SetTargetTemperature(modem, thermostatID, name, target)
			return nil
		})
	return id, nil
}

// SetHolidays programs an absence window.
func (s *DeviceService) SetHolidays(ctx context.Context, start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidDateRange
	}
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.SetHolidaysMode(ctx, modem, wireTime(start), wireTime(end))
	return err
}

// CancelHolidays clears any programmed absence window.
func (s *DeviceService) CancelHolidays(ctx context.Context) error {
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.CancelHolidaysMode(ctx, modem)
	return err
}

// SetFrostProtection starts open-ended frost protection.
func (s *DeviceService) SetFrostProtection(ctx context.Context, start time.Time) error {
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.SetFrostProtectionMode(ctx, modem, wireTime(start))
	return err
}

// SetKwhPrices updates peak and off-peak electricity prices in EUR/kWh.
func (s *DeviceService) SetKwhPrices(ctx context.Context, peak, offPeak float64) error {
	if peak <= 0 || offPeak <= 0 {
		return ErrInvalidPrice
	}
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.SetKwhPrices(ctx, modem, peak, offPeak)
	return err
}

// SetHousehold updates the household composition setting.
func (s *DeviceService) SetHousehold(ctx context.Context, people string) error {
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.ChangePeople(ctx, modem, people)
	return err
}

// SetAntilegionella updates the antilegionella cycle setting.
func (s *DeviceService) SetAntilegionella(ctx context.Context, cycle string) error {
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.ChangeAntilegio(ctx, modem, cycle)
	return err
}

// SetWeekPlanning pushes a full planning string to program variant A or B.
func (s *DeviceService) SetWeekPlanning(ctx context.Context, variant, planning string) error {
	if variant != "A" && variant != "B" {
		return fmt.Errorf("%w: %q", ErrInvalidVariant, variant)
	}
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.ChangeWeekPlanning(ctx, modem, planning, variant)
	return err
}

// OverwritePlanning edits one planning program on the local snapshot only.
func (s *DeviceService) OverwritePlanning(program models.PlanningProgram, slots []models.PlanningSlot) error {
	if !program.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProgram, string(program))
	}
	return s.coord.OverwritePlanning(program, slots)
}

// ResetFilter clears the filter wear indicator.
func (s *DeviceService) ResetFilter(ctx context.Context) error {
	modem, err := s.modem()
	if err != nil {
		return err
	}
	_, err = s.api.ResetFilter(ctx, modem)
	return err
}

// wireTime formats a timestamp the way the device firmware expects.
func wireTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}
