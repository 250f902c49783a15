package telemetry

import "testing"

func TestMeasurement_Payload(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{value: 21.5, want: "21.5"},
		{value: 60, want: "60"},
		{value: 50000.0, want: "50000"},
		{value: -3.25, want: "-3.25"},
		{value: 0.000001, want: "0.000001"},
		{value: 1e21, want: "1000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := string(Measurement{Name: TemperatureC, Value: tt.value}.Payload())
			if got != tt.want {
				t.Errorf("Payload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	var rec Recorder
	sink := rec.Sink()
	sink(TemperatureC, 1)
	sink(HumidityPercentage, 2)

	if len(rec.Measurements) != 2 {
		t.Fatalf("len = %d, want 2", len(rec.Measurements))
	}
	if rec.Measurements[1] != (Measurement{Name: HumidityPercentage, Value: 2}) {
		t.Errorf("Measurements[1] = %+v", rec.Measurements[1])
	}
}
