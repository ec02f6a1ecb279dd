// Package aldes implements the client for the Aldes IoT cloud API: token
// management, resilient authenticated requests, the paced temperature
// command queue and one method per device operation.
package aldes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

const (
	defaultBaseURL = "https://aldesiotsuite-aldeswebapi.azurewebsites.net"
	tokenPath      = "/oauth2/token"
	productsPath   = "/aldesoc/v5/users/me/products"

	// defaultRequestTimeout bounds every outbound call end to end.
	defaultRequestTimeout = 30 * time.Second

	// defaultCommandDelay spaces queued temperature commands so the device
	// modem is never hit with back-to-back writes.
	defaultCommandDelay = 5 * time.Second
)

// CommandID selects the device subsystem a JSON-RPC command targets.
type CommandID int

const (
	// CommandSettings targets household settings (people, antilegionella).
	CommandSettings CommandID = 0
	// CommandAir targets the air (heating/cooling) subsystem.
	CommandAir CommandID = 1
	// CommandHotWater targets the hot-water subsystem.
	CommandHotWater CommandID = 2
)

// Client talks to the Aldes cloud API on behalf of one account. The bearer
// token and the emergency response cache are the only cross-call mutable
// state; both are mutex-guarded so the client is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient     *http.Client
	log            *logger.Logger
	requestTimeout time.Duration
	commandDelay   time.Duration

	tokenMu sync.RWMutex
	token   string

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	queue      *commandQueue
	workerStop context.CancelFunc
	workerDone chan struct{}
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for all outbound calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithCommandDelay overrides the pacing between queued temperature
// commands.
func WithCommandDelay(d time.Duration) Option {
	return func(c *Client) { c.commandDelay = d }
}

// WithRequestTimeout overrides the default per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// NewClient creates a client and starts its temperature queue worker. The
// worker runs until Close is called.
func NewClient(username, password string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:        defaultBaseURL,
		username:       username,
		password:       password,
		httpClient:     &http.Client{},
		log:            log,
		requestTimeout: defaultRequestTimeout,
		commandDelay:   defaultCommandDelay,
		cache:          make(map[string]cacheEntry),
		queue:          newCommandQueue(),
		workerDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.workerStop = cancel
	go c.temperatureWorker(ctx)
	return c
}

// Close stops the queue worker and waits for it to exit. Commands still
// sitting in the queue are abandoned.
func (c *Client) Close() {
	c.workerStop()
	<-c.workerDone
}

func (c *Client) productURL(modem, suffix string) string {
	return c.baseURL + productsPath + "/" + modem + "/" + suffix
}

// rpcCommand is the JSON-RPC envelope accepted by the commands endpoint.
type rpcCommand struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	ID      int      `json:"id"`
	Params  []string `json:"params"`
}

// sendCommand posts one JSON-RPC command to the device and returns the raw
// response body.
func (c *Client) sendCommand(ctx context.Context, modem, method string, id CommandID, param string) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcCommand{
		JSONRPC: "2.0",
		Method:  method,
		ID:      int(id),
		Params:  []string{param},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal command %s: %w", method, err)
	}
	c.log.Infow("sending device command", "method", method, "modem", modem)
	body, err := c.request(ctx, http.MethodPost, c.productURL(modem, "commands"), payload)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", method, err)
	}
	return body, nil
}

// ChangeMode changes the operating mode of one subsystem: CommandAir with
// an air mode letter, or CommandHotWater with a water mode letter.
func (c *Client) ChangeMode(ctx context.Context, modem, mode string, target CommandID) (json.RawMessage, error) {
	c.log.Infow("changing mode", "modem", modem, "mode", mode, "target", int(target))
	return c.sendCommand(ctx, modem, "changeMode", target, mode)
}

// ChangeWeekPlanning replaces the weekly planning of variant "A" or "B"
// with the given planning string.
func (c *Client) ChangeWeekPlanning(ctx context.Context, modem, planning, variant string) (json.RawMessage, error) {
	c.log.Infow("changing week planning", "modem", modem, "variant", variant)
	return c.sendCommand(ctx, modem, "changePlanningMode"+variant, CommandAir, planning)
}

// SetHolidaysMode programs an absence window. Dates use the wire format
// yyyyMMddHHmmssZ.
func (c *Client) SetHolidaysMode(ctx context.Context, modem, startDate, endDate string) (json.RawMessage, error) {
	param := "W" + startDate + endDate
	c.log.Infow("setting holidays mode", "modem", modem, "start", startDate, "end", endDate)
	return c.sendCommand(ctx, modem, "changeMode", CommandAir, param)
}

// holidaysCancelParam carries epoch-start dates, which the device firmware
// reads as "no holiday programmed".
const holidaysCancelParam = "W00010101000000Z00010101000000Z"

// CancelHolidaysMode clears any programmed absence window. Cancellation is
// idempotent and independent of the previously set dates.
func (c *Client) CancelHolidaysMode(ctx context.Context, modem string) (json.RawMessage, error) {
	c.log.Infow("cancelling holidays mode", "modem", modem)
	return c.sendCommand(ctx, modem, "changeMode", CommandAir, holidaysCancelParam)
}

// SetFrostProtectionMode starts open-ended frost protection from the given
// date; the all-zero end date means "until further notice".
func (c *Client) SetFrostProtectionMode(ctx context.Context, modem, startDate string) (json.RawMessage, error) {
	param := "W" + startDate + "00000000000000Z"
	c.log.Infow("setting frost protection mode", "modem", modem, "start", startDate)
	return c.sendCommand(ctx, modem, "changeMode", CommandAir, param)
}

// SetKwhPrices updates the peak and off-peak electricity prices, given in
// EUR/kWh. The wire format wants integer milli-euros; the conversion
// truncates, matching the device firmware's own parsing.
func (c *Client) SetKwhPrices(ctx context.Context, modem string, peak, offPeak float64) (json.RawMessage, error) {
	peakMilli := int(peak * 1000)
	offPeakMilli := int(offPeak * 1000)
	param := fmt.Sprintf("P%dC%d", peakMilli, offPeakMilli)
	c.log.Infow("setting kwh prices", "modem", modem, "peak_milli", peakMilli, "off_peak_milli", offPeakMilli)
	return c.sendCommand(ctx, modem, "prixkwh", CommandAir, param)
}

// ChangePeople updates the household composition setting.
func (c *Client) ChangePeople(ctx context.Context, modem, people string) (json.RawMessage, error) {
	c.log.Infow("changing household composition", "modem", modem, "people", people)
	return c.sendCommand(ctx, modem, "changePeople", CommandSettings, people)
}

// ChangeAntilegio updates the antilegionella cycle setting.
func (c *Client) ChangeAntilegio(ctx context.Context, modem, cycle string) (json.RawMessage, error) {
	c.log.Infow("changing antilegionella cycle", "modem", modem, "cycle", cycle)
	return c.sendCommand(ctx, modem, "antilegio", CommandSettings, cycle)
}

// SetTargetTemperature enqueues a temperature change for the queue worker.
// The enqueue never blocks; the actual change is asynchronous and
// eventually consistent. The returned id correlates worker log lines with
// the caller.
func (c *Client) SetTargetTemperature(modem string, thermostatID int, thermostatName string, target float64) uuid.UUID {
	cmd := models.TemperatureCommand{
		ID:             uuid.New(),
		Modem:          modem,
		ThermostatID:   thermostatID,
		ThermostatName: thermostatName,
		Target:         target,
	}
	c.queue.push(cmd)
	c.log.Debugw("queued temperature command",
		"command_id", cmd.ID, "thermostat_id", thermostatID, "target", target)
	return cmd.ID
}

// ChangeTemperature issues the thermostat update immediately. Callers
// outside the queue worker should prefer SetTargetTemperature.
func (c *Client) ChangeTemperature(ctx context.Context, modem string, thermostatID int, thermostatName string, target float64) (json.RawMessage, error) {
	c.log.Infow("changing thermostat temperature",
		"thermostat_id", thermostatID, "thermostat_name", thermostatName, "target", target)
	payload, err := json.Marshal([]map[string]any{{
		"ThermostatId":   thermostatID,
		"Name":           thermostatName,
		"TemperatureSet": int(target),
	}})
	if err != nil {
		return nil, fmt.Errorf("marshal thermostat update: %w", err)
	}
	body, err := c.request(ctx, http.MethodPatch, c.productURL(modem, "updateThermostats"), payload)
	if err != nil {
		return nil, fmt.Errorf("update thermostats: %w", err)
	}
	return body, nil
}

// ResetFilter clears the filter wear indicator.
func (c *Client) ResetFilter(ctx context.Context, modem string) (json.RawMessage, error) {
	c.log.Infow("resetting filter", "modem", modem)
	body, err := c.request(ctx, http.MethodPatch, c.productURL(modem, "resetFilter"), nil)
	if err != nil {
		return nil, fmt.Errorf("reset filter: %w", err)
	}
	return body, nil
}

// GetStatistics fetches consumption statistics between two wire-format
// dates at the given granularity (day, week or month). Statistics are
// non-critical telemetry: any failure is logged and swallowed, and the
// result is nil.
func (c *Client) GetStatistics(ctx context.Context, modem, startDate, endDate, granularity string) json.RawMessage {
	url := c.productURL(modem, "statistics/"+startDate+"/"+endDate+"/"+granularity)
	body, err := c.request(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.log.Errorw("failed to get statistics", "modem", modem, "err", err)
		return nil
	}
	return body
}

// FetchData retrieves the products list and builds a snapshot from its
// first element. Accounts with more than one product are not supported;
// extra products are ignored with a log line. An empty or malformed list
// yields (nil, nil) so the caller can preserve its previous snapshot.
func (c *Client) FetchData(ctx context.Context) (*models.DeviceSnapshot, error) {
	c.log.Debugw("fetching product data")
	body, err := c.request(ctx, http.MethodGet, c.baseURL+productsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	var products []json.RawMessage
	if err := json.Unmarshal(body, &products); err != nil {
		c.log.Warnw("products response is not a list", "err", err)
		return nil, nil
	}
	if len(products) == 0 {
		c.log.Warnw("no products returned by Aldes API")
		return nil, nil
	}
	if len(products) > 1 {
		c.log.Infow("multiple products on account, using the first", "count", len(products))
	}

	var raw models.RawProduct
	if err := json.Unmarshal(products[0], &raw); err != nil {
		c.log.Warnw("malformed product payload", "err", err)
		return nil, nil
	}
	return models.BuildSnapshot(&raw), nil
}
