package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tiagfernandes/aldes-bridge/internal/aldes"
	"github.com/tiagfernandes/aldes-bridge/internal/coordinator"
	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

// Device exposes every device-control operation of the bridge.
type Device interface {
	SetAirMode(ctx context.Context, mode string) error
	SetWaterMode(ctx context.Context, mode string) error
	QueueTemperature(thermostatID int, target float64) (uuid.UUID, error)
	SetHolidays(ctx context.Context, start, end time.Time) error
	CancelHolidays(ctx context.Context) error
	SetFrostProtection(ctx context.Context, start time.Time) error
	SetKwhPrices(ctx context.Context, peak, offPeak float64) error
	SetHousehold(ctx context.Context, people string) error
	SetAntilegionella(ctx context.Context, cycle string) error
	SetWeekPlanning(ctx context.Context, variant, planning string) error
	OverwritePlanning(program models.PlanningProgram, slots []models.PlanningSlot) error
	ResetFilter(ctx context.Context) error
}

// Monitoring exposes read access to the published snapshot.
type Monitoring interface {
	Snapshot() *models.DeviceSnapshot
	Ready() bool
	Subscribe() (<-chan *models.DeviceSnapshot, func())
}

// Statistics exposes the non-critical consumption telemetry.
type Statistics interface {
	Statistics(ctx context.Context, start, end time.Time, granularity string) (json.RawMessage, error)
}

// Authorization issues and validates local API session tokens.
type Authorization interface {
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Service aggregates all sub-services behind one handle for the HTTP
// layer.
type Service struct {
	Device
	Monitoring
	Statistics
	Authorization
}

// deviceAPI is the slice of the Aldes client the device service uses.
type deviceAPI interface {
	ChangeMode(ctx context.Context, modem, mode string, target aldes.CommandID) (json.RawMessage, error)
	ChangeWeekPlanning(ctx context.Context, modem, planning, variant string) (json.RawMessage, error)
	SetHolidaysMode(ctx context.Context, modem, startDate, endDate string) (json.RawMessage, error)
	CancelHolidaysMode(ctx context.Context, modem string) (json.RawMessage, error)
	SetFrostProtectionMode(ctx context.Context, modem, startDate string) (json.RawMessage, error)
	SetKwhPrices(ctx context.Context, modem string, peak, offPeak float64) (json.RawMessage, error)
	ChangePeople(ctx context.Context, modem, people string) (json.RawMessage, error)
	ChangeAntilegio(ctx context.Context, modem, cycle string) (json.RawMessage, error)
	SetTargetTemperature(modem string, thermostatID int, thermostatName string, target float64) uuid.UUID
	ResetFilter(ctx context.Context, modem string) (json.RawMessage, error)
	GetStatistics(ctx context.Context, modem, startDate, endDate, granularity string) json.RawMessage
}

// AuthConfig carries the single bridge credential and the JWT signing key.
type AuthConfig struct {
	Username     string
	PasswordHash string
	SigningKey   string
	TokenTTL     time.Duration
}

// NewService wires the Aldes client and the coordinator into the
// sub-services.
func NewService(client *aldes.Client, coord *coordinator.Coordinator, auth AuthConfig, log *logger.Logger) *Service {
	return &Service{
		Device:        NewDeviceService(client, coord, log),
		Monitoring:    coord,
		Statistics:    NewStatisticsService(client, coord),
		Authorization: NewAuthService(auth),
	}
}
