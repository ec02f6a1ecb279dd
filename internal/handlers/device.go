package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiagfernandes/aldes-bridge/internal/models"
	"github.com/tiagfernandes/aldes-bridge/internal/service"
)

const (
	statusOK       = "ok"
	statusAccepted = "accepted"
	statusApplied  = "applied"

	errDeviceWrite = "device command failed"
)

// Layouts accepted for date parameters, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// writeError maps service errors to HTTP codes: validation errors are the
// caller's fault, a missing snapshot means the bridge is not ready yet,
// anything else is an upstream failure.
func (h *Handler) writeError(c *gin.Context, logKey string, err error) {
	switch {
	case errors.Is(err, service.ErrDeviceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidAirMode),
		errors.Is(err, service.ErrInvalidWaterMode),
		errors.Is(err, service.ErrInvalidDateRange),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrUnknownThermostat),
		errors.Is(err, service.ErrInvalidVariant),
		errors.Is(err, service.ErrInvalidProgram),
		errors.Is(err, service.ErrInvalidGranularity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errDeviceWrite, logKey, err)
	}
}

// Request DTOs.
type airModeRequest struct {
	Mode string `json:"mode" binding:"required"` // A..I
}

type waterModeRequest struct {
	Mode string `json:"mode" binding:"required"` // L | M | N
}

type temperatureRequest struct {
	ThermostatID int     `json:"thermostat_id" binding:"required"`
	Target       float64 `json:"target" binding:"required"`
}

type holidaysRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

type frostRequest struct {
	Start string `json:"start,omitempty"` // defaults to now
}

type pricesRequest struct {
	Peak    float64 `json:"peak" binding:"required"`     // EUR/kWh
	OffPeak float64 `json:"off_peak" binding:"required"` // EUR/kWh
}

type peopleRequest struct {
	People string `json:"people" binding:"required"`
}

type antilegionellaRequest struct {
	Cycle string `json:"cycle" binding:"required"`
}

type planningRequest struct {
	Slots []models.PlanningSlot `json:"slots" binding:"required"`
}

type pushPlanningRequest struct {
	Planning string `json:"planning" binding:"required"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
		"ready":  h.services.Ready(),
	})
}

// @Summary      Get device state
// @Tags         device
// @Produce      json
// @Success      200  {object}  models.DeviceSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/device/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	snap := h.services.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no device snapshot available yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Set air mode
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  airModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/air-mode [post]
// @Security     BearerAuth
func (h *Handler) setAirMode(c *gin.Context) {
	var req airModeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetAirMode(c.Request.Context(), req.Mode); err != nil {
		h.writeError(c, "device_set_air_mode_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "mode": req.Mode})
}

// @Summary      Set hot-water mode
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  waterModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/water-mode [post]
// @Security     BearerAuth
func (h *Handler) setWaterMode(c *gin.Context) {
	var req waterModeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetWaterMode(c.Request.Context(), req.Mode); err != nil {
		h.writeError(c, "device_set_water_mode_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "mode": req.Mode})
}

// @Summary      Queue a target temperature change
// @Description  The change is applied asynchronously by a paced worker.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  temperatureRequest  true  "Temperature payload"
// @Success      202   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/device/temperature [post]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	var req temperatureRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	id, err := h.services.QueueTemperature(req.ThermostatID, req.Target)
	if err != nil {
		h.writeError(c, "device_queue_temperature_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusAccepted, "command_id": id.String()})
}

// @Summary      Program a holidays window
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  holidaysRequest  true  "Absence window"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/holidays [post]
// @Security     BearerAuth
func (h *Handler) setHolidays(c *gin.Context) {
	var req holidaysRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date: " + err.Error()})
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date: " + err.Error()})
		return
	}
	if err := h.services.SetHolidays(c.Request.Context(), start, end); err != nil {
		h.writeError(c, "device_set_holidays_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Cancel the holidays window
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/device/holidays [delete]
// @Security     BearerAuth
func (h *Handler) cancelHolidays(c *gin.Context) {
	if err := h.services.CancelHolidays(c.Request.Context()); err != nil {
		h.writeError(c, "device_cancel_holidays_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Enable frost protection
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  frostRequest  false  "Start time, defaults to now"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/frost-protection [post]
// @Security     BearerAuth
func (h *Handler) setFrostProtection(c *gin.Context) {
	var req frostRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	start := time.Now()
	if req.Start != "" {
		t, err := parseDate(req.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date: " + err.Error()})
			return
		}
		start = t
	}
	if err := h.services.SetFrostProtection(c.Request.Context(), start); err != nil {
		h.writeError(c, "device_set_frost_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Set electricity prices
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  pricesRequest  true  "Prices in EUR/kWh"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/prices [post]
// @Security     BearerAuth
func (h *Handler) setPrices(c *gin.Context) {
	var req pricesRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetKwhPrices(c.Request.Context(), req.Peak, req.OffPeak); err != nil {
		h.writeError(c, "device_set_prices_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Set household composition
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  peopleRequest  true  "Household payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/people [post]
// @Security     BearerAuth
func (h *Handler) setPeople(c *gin.Context) {
	var req peopleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetHousehold(c.Request.Context(), req.People); err != nil {
		h.writeError(c, "device_set_people_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Set antilegionella cycle
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  antilegionellaRequest  true  "Cycle payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/antilegionella [post]
// @Security     BearerAuth
func (h *Handler) setAntilegionella(c *gin.Context) {
	var req antilegionellaRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetAntilegionella(c.Request.Context(), req.Cycle); err != nil {
		h.writeError(c, "device_set_antilegionella_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Overwrite one planning program locally
// @Description  Edits the in-memory snapshot only; nothing is sent upstream.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        program  path  string           true  "heat-a | heat-b | cool-c | cool-d"
// @Param        body     body  planningRequest  true  "Planning slots"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      503      {object}  map[string]string
// @Router       /api/v1/device/planning/{program} [put]
// @Security     BearerAuth
func (h *Handler) overwritePlanning(c *gin.Context) {
	var req planningRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	program := models.PlanningProgram(c.Param("program"))
	if err := h.services.OverwritePlanning(program, req.Slots); err != nil {
		if errors.Is(err, service.ErrInvalidProgram) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "program": string(program)})
}

// @Summary      Push a week planning string to the device
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        variant  path  string               true  "A | B"
// @Param        body     body  pushPlanningRequest  true  "Planning payload"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /api/v1/device/planning/{variant}/push [post]
// @Security     BearerAuth
func (h *Handler) pushWeekPlanning(c *gin.Context) {
	var req pushPlanningRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	variant := c.Param("variant")
	if err := h.services.SetWeekPlanning(c.Request.Context(), variant, req.Planning); err != nil {
		h.writeError(c, "device_push_planning_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied, "variant": variant})
}

// @Summary      Reset the filter wear indicator
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/device/filter/reset [post]
// @Security     BearerAuth
func (h *Handler) resetFilter(c *gin.Context) {
	if err := h.services.ResetFilter(c.Request.Context()); err != nil {
		h.writeError(c, "device_reset_filter_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusApplied})
}

// @Summary      Get consumption statistics
// @Description  Upstream failures yield an empty data field, never an error.
// @Tags         device
// @Produce      json
// @Param        start        query  string  true  "Window start"
// @Param        end          query  string  true  "Window end"
// @Param        granularity  query  string  true  "day | week | month"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/device/statistics [get]
// @Security     BearerAuth
func (h *Handler) getStatistics(c *gin.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date: " + err.Error()})
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date: " + err.Error()})
		return
	}
	data, err := h.services.Statistics.Statistics(c.Request.Context(), start, end, c.Query("granularity"))
	if err != nil {
		h.writeError(c, "device_get_statistics_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}
