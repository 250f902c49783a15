// Package extract maps OpenWeatherMap responses onto the flat measurement
// vocabulary in package telemetry.
//
// Each extractor walks the top-level keys of one endpoint's response in sorted
// order and hands every recognized value to the sink. Keys the endpoint is
// known to send but that carry no measurement are skipped silently; anything
// else is logged at error level and dropped. A recognized key missing the
// sub-key that holds the value produces no measurement and no log line.
package extract

import (
	"encoding/json"
	"log/slog"
	"sort"

	"openweather-device/internal/telemetry"
)

// Endpoint names used in log attributes.
const (
	EndpointWeather        = "weather"
	EndpointUVIndex        = "uv_index"
	EndpointCarbonMonoxide = "carbon_monoxide"
	EndpointSulfurDioxide  = "sulfur_dioxide"
)

// Pollution responses report a mixing ratio; publish parts per billion.
const mixingRatioToPPB = 1e9

// Positions of the reading inside the pollution "data" arrays.
const (
	carbonMonoxideIndex = 0
	sulfurDioxideIndex  = 18
)

var (
	weatherIgnored   = keySet("name", "sys", "coord", "weather", "base", "dt", "id", "cod")
	uvIgnored        = keySet("lat", "date", "lon", "date_iso")
	pollutionIgnored = keySet("location", "time")
)

type field struct {
	key  string
	name string
}

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Weather handles the current weather endpoint.
func (e *Extractor) Weather(resp map[string]any, sink telemetry.Sink) {
	for _, key := range sortedKeys(resp) {
		if _, ok := weatherIgnored[key]; ok {
			continue
		}
		v := resp[key]
		switch key {
		case "clouds":
			e.emitFields(sink, EndpointWeather, key, v,
				field{"all", telemetry.CloudinessPercentage},
			)
		case "visibility":
			e.emit(sink, EndpointWeather, telemetry.VisibilityMeters, v)
		case "wind":
			e.emitFields(sink, EndpointWeather, key, v,
				field{"deg", telemetry.WindDirectionDegrees},
				field{"speed", telemetry.WindSpeedMetersPerSecond},
			)
		case "main":
			e.emitFields(sink, EndpointWeather, key, v,
				field{"pressure", telemetry.PressureHPa},
				field{"temp", telemetry.TemperatureC},
				field{"humidity", telemetry.HumidityPercentage},
			)
		case "rain":
			e.emitFields(sink, EndpointWeather, key, v,
				field{"3h", telemetry.PrecipitationLast3hMM},
			)
		case "snow":
			e.emitFields(sink, EndpointWeather, key, v,
				field{"3h", telemetry.SnowLast3hMM},
			)
		default:
			e.unrecognized(EndpointWeather, key, v)
		}
	}
}

// UVIndex handles the ultraviolet index endpoint.
func (e *Extractor) UVIndex(resp map[string]any, sink telemetry.Sink) {
	for _, key := range sortedKeys(resp) {
		if _, ok := uvIgnored[key]; ok {
			continue
		}
		v := resp[key]
		if key == "value" {
			e.emit(sink, EndpointUVIndex, telemetry.UltravioletIndex, v)
			continue
		}
		e.unrecognized(EndpointUVIndex, key, v)
	}
}

// CarbonMonoxide handles the CO pollution endpoint.
func (e *Extractor) CarbonMonoxide(resp map[string]any, sink telemetry.Sink) {
	e.pollution(resp, sink, EndpointCarbonMonoxide, carbonMonoxideIndex, telemetry.CarbonMonoxidePPBAt1Bar)
}

// SulfurDioxide handles the SO2 pollution endpoint.
func (e *Extractor) SulfurDioxide(resp map[string]any, sink telemetry.Sink) {
	e.pollution(resp, sink, EndpointSulfurDioxide, sulfurDioxideIndex, telemetry.SulfurDioxidePPBAt1HPa)
}

func (e *Extractor) pollution(resp map[string]any, sink telemetry.Sink, endpoint string, index int, name string) {
	for _, key := range sortedKeys(resp) {
		if _, ok := pollutionIgnored[key]; ok {
			continue
		}
		v := resp[key]
		if key != "data" {
			e.unrecognized(endpoint, key, v)
			continue
		}

		samples, ok := v.([]any)
		if !ok {
			e.logger.Warn("unexpected field shape", "endpoint", endpoint, "key", key, "value", v)
			continue
		}
		if len(samples) <= index {
			continue
		}
		sample, ok := samples[index].(map[string]any)
		if !ok {
			continue
		}
		raw, ok := sample["value"]
		if !ok {
			continue
		}
		ratio, ok := number(raw)
		if !ok {
			e.logger.Warn("non-numeric value", "endpoint", endpoint, "name", name, "value", raw)
			continue
		}
		e.publish(sink, endpoint, name, ratio*mixingRatioToPPB)
	}
}

func (e *Extractor) emitFields(sink telemetry.Sink, endpoint, key string, v any, fields ...field) {
	obj, ok := v.(map[string]any)
	if !ok {
		e.logger.Warn("unexpected field shape", "endpoint", endpoint, "key", key, "value", v)
		return
	}
	for _, f := range fields {
		if raw, ok := obj[f.key]; ok {
			e.emit(sink, endpoint, f.name, raw)
		}
	}
}

func (e *Extractor) emit(sink telemetry.Sink, endpoint, name string, raw any) {
	value, ok := number(raw)
	if !ok {
		e.logger.Warn("non-numeric value", "endpoint", endpoint, "name", name, "value", raw)
		return
	}
	e.publish(sink, endpoint, name, value)
}

func (e *Extractor) publish(sink telemetry.Sink, endpoint, name string, value float64) {
	e.logger.Info("measurement", "endpoint", endpoint, "name", name, "value", value)
	if sink != nil {
		sink(name, value)
	}
}

func (e *Extractor) unrecognized(endpoint, key string, v any) {
	e.logger.Error("unrecognized field", "endpoint", endpoint, "key", key, "value", v)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
