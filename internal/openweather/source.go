package openweather

import (
	"context"
	"log/slog"

	"openweather-device/internal/extract"
	"openweather-device/internal/telemetry"
)

// CycleStats summarizes one pass over the endpoints.
type CycleStats struct {
	Fetched   int
	Failed    int
	Published int
}

type step struct {
	endpoint string
	url      string
	extract  func(Response, telemetry.Sink)
}

// Source polls every endpoint for one location and feeds the extracted
// measurements to a sink.
type Source struct {
	client *Client
	steps  []step
	logger *slog.Logger
}

func NewSource(client *Client, endpoints Endpoints, extractor *extract.Extractor, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client: client,
		logger: logger,
		steps: []step{
			{extract.EndpointWeather, endpoints.Weather, extractor.Weather},
			{extract.EndpointUVIndex, endpoints.UVIndex, extractor.UVIndex},
			{extract.EndpointCarbonMonoxide, endpoints.CarbonMonoxide, extractor.CarbonMonoxide},
			{extract.EndpointSulfurDioxide, endpoints.SulfurDioxide, extractor.SulfurDioxide},
		},
	}
}

// PublishData fetches weather, UV index, carbon monoxide and sulfur dioxide
// in that order. A failed endpoint contributes nothing and does not stop the
// others; a cancelled ctx stops before the next request.
func (s *Source) PublishData(ctx context.Context, sink telemetry.Sink) CycleStats {
	var stats CycleStats
	counted := func(name string, value float64) {
		stats.Published++
		if sink != nil {
			sink(name, value)
		}
	}

	for _, st := range s.steps {
		if ctx.Err() != nil {
			s.logger.Info("poll cycle interrupted", "next_endpoint", st.endpoint)
			break
		}
		res := s.client.Fetch(ctx, st.endpoint, st.url)
		if !res.OK() {
			stats.Failed++
		} else {
			stats.Fetched++
		}
		st.extract(res.Data, counted)
	}
	return stats
}
