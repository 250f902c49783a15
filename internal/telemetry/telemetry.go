// Package telemetry holds the measurement vocabulary shared by the
// extractors and the publishers.
package telemetry

import "strconv"

// Measurement names. The suffix carries the unit.
const (
	TemperatureC             = "temperature_C"
	HumidityPercentage       = "humidity_percentage"
	WindSpeedMetersPerSecond = "wind_speed_meters_per_second"
	WindDirectionDegrees     = "wind_direction_degrees"
	UltravioletIndex         = "ultraviolet_index"
	CloudinessPercentage     = "cloudiness_percentage"
	VisibilityMeters         = "visibility_meters"
	PressureHPa              = "pressure_hPa"
	PrecipitationLast3hMM    = "precipitation_volume_last_3h_mm"
	SnowLast3hMM             = "snow_volume_last_3h_mm"
	CarbonMonoxidePPBAt1Bar  = "carbon_monoxide_ratio_per_billion_at_1bar"
	SulfurDioxidePPBAt1HPa   = "sulfur_dioxide_ratio_per_billion_at_1hPa"
)

// Measurement is a single named scalar.
type Measurement struct {
	Name  string
	Value float64
}

// Payload renders the value the way it is published: the shortest decimal
// form that round-trips ("21.5", "60", "50000").
func (m Measurement) Payload() []byte {
	return strconv.AppendFloat(nil, m.Value, 'f', -1, 64)
}

// Sink receives measurements as they are extracted.
type Sink func(name string, value float64)

// Recorder keeps every measurement handed to its Sink, in order.
type Recorder struct {
	Measurements []Measurement
}

func (r *Recorder) Sink() Sink {
	return func(name string, value float64) {
		r.Measurements = append(r.Measurements, Measurement{Name: name, Value: value})
	}
}
