package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tiagfernandes/aldes-bridge/internal/models"
	"github.com/tiagfernandes/aldes-bridge/internal/service"
)

// Test doubles for the composed service. Kept in a non-test file so every
// handler test can share them.

type mockDevice struct {
	SetAirModeFn         func(ctx context.Context, mode string) error
	SetWaterModeFn       func(ctx context.Context, mode string) error
	QueueTemperatureFn   func(thermostatID int, target float64) (uuid.UUID, error)
	SetHolidaysFn        func(ctx context.Context, start, end time.Time) error
	CancelHolidaysFn     func(ctx context.Context) error
	SetFrostProtectionFn func(ctx context.Context, start time.Time) error
	SetKwhPricesFn       func(ctx context.Context, peak, offPeak float64) error
	SetHouseholdFn       func(ctx context.Context, people string) error
	SetAntilegionellaFn  func(ctx context.Context, cycle string) error
	SetWeekPlanningFn    func(ctx context.Context, variant, planning string) error
	OverwritePlanningFn  func(program models.PlanningProgram, slots []models.PlanningSlot) error
	ResetFilterFn        func(ctx context.Context) error
}

func (m *mockDevice) SetAirMode(ctx context.Context, mode string) error {
	return m.SetAirModeFn(ctx, mode)
}
func (m *mockDevice) SetWaterMode(ctx context.Context, mode string) error {
	return m.SetWaterModeFn(ctx, mode)
}
func (m *mockDevice) QueueTemperature(thermostatID int, target float64) (uuid.UUID, error) {
	return m.QueueTemperatureFn(thermostatID, target)
}
func (m *mockDevice) SetHolidays(ctx context.Context, start, end time.Time) error {
	return m.SetHolidaysFn(ctx, start, end)
}
func (m *mockDevice) CancelHolidays(ctx context.Context) error {
	return m.CancelHolidaysFn(ctx)
}
func (m *mockDevice) SetFrostProtection(ctx context.Context, start time.Time) error {
	return m.SetFrostProtectionFn(ctx, start)
}
func (m *mockDevice) SetKwhPrices(ctx context.Context, peak, offPeak float64) error {
	return m.SetKwhPricesFn(ctx, peak, offPeak)
}
func (m *mockDevice) SetHousehold(ctx context.Context, people string) error {
	return m.SetHouseholdFn(ctx, people)
}
func (m *mockDevice) SetAntilegionella(ctx context.Context, cycle string) error {
	return m.SetAntilegionellaFn(ctx, cycle)
}
func (m *mockDevice) SetWeekPlanning(ctx context.Context, variant, planning string) error {
	return m.SetWeekPlanningFn(ctx, variant, planning)
}
func (m *mockDevice) OverwritePlanning(program models.PlanningProgram, slots []models.PlanningSlot) error {
	return m.OverwritePlanningFn(program, slots)
}
func (m *mockDevice) ResetFilter(ctx context.Context) error {
	return m.ResetFilterFn(ctx)
}

type mockMonitoring struct {
	snap *models.DeviceSnapshot
}

func (m *mockMonitoring) Snapshot() *models.DeviceSnapshot { return m.snap }
func (m *mockMonitoring) Ready() bool                      { return m.snap != nil }
func (m *mockMonitoring) Subscribe() (<-chan *models.DeviceSnapshot, func()) {
	ch := make(chan *models.DeviceSnapshot)
	return ch, func() {}
}

type mockStatistics struct {
	StatisticsFn func(ctx context.Context, start, end time.Time, granularity string) (json.RawMessage, error)
}

func (m *mockStatistics) Statistics(ctx context.Context, start, end time.Time, granularity string) (json.RawMessage, error) {
	return m.StatisticsFn(ctx, start, end, granularity)
}

type mockAuthorization struct {
	GenerateTokenFn func(username, password string) (string, error)
	ParseTokenFn    func(accessToken string) (string, error)
}

func (m *mockAuthorization) GenerateToken(username, password string) (string, error) {
	return m.GenerateTokenFn(username, password)
}
func (m *mockAuthorization) ParseToken(accessToken string) (string, error) {
	return m.ParseTokenFn(accessToken)
}

func newMockService(device *mockDevice, snap *models.DeviceSnapshot) *service.Service {
	return &service.Service{
		Device:     device,
		Monitoring: &mockMonitoring{snap: snap},
		Statistics: &mockStatistics{
			StatisticsFn: func(ctx context.Context, start, end time.Time, granularity string) (json.RawMessage, error) {
				return json.RawMessage(`[]`), nil
			},
		},
		Authorization: &mockAuthorization{
			GenerateTokenFn: func(username, password string) (string, error) { return "token", nil },
			ParseTokenFn: func(accessToken string) (string, error) {
				if accessToken == "valid" {
					return "admin", nil
				}
				return "", service.ErrInvalidToken
			},
		},
	}
}
