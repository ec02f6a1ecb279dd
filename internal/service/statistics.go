package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Statistics granularities accepted by the vendor API.
var validGranularities = map[string]struct{}{
	"day":   {},
	"week":  {},
	"month": {},
}

var ErrInvalidGranularity = errors.New("granularity must be day, week or month")

// StatisticsService serves consumption telemetry. Upstream failures
// yield an empty body rather than an error; telemetry is never worth a
// failed request to the caller.
type StatisticsService struct {
	api   deviceAPI
	coord deviceCoordinator
}

func NewStatisticsService(api deviceAPI, coord deviceCoordinator) *StatisticsService {
	return &StatisticsService{api: api, coord: coord}
}

func (s *StatisticsService) Statistics(ctx context.Context, start, end time.Time, granularity string) (json.RawMessage, error) {
	if _, ok := validGranularities[granularity]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, granularity)
	}
	if !start.Before(end) {
		return nil, ErrInvalidDateRange
	}
	snap := s.coord.Snapshot()
	if snap == nil || snap.Modem == "" {
		return nil, ErrDeviceUnavailable
	}
	return s.api.GetStatistics(ctx, snap.Modem, wireTime(start), wireTime(end), granularity), nil
}
