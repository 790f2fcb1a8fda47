package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMetricMarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		want   string
	}{
		{"valid value", MetricOf(84.57), "84.57"},
		{"valid zero", MetricOf(0), "0"},
		{"invalid marshals as sentinel", Metric{}, `"N/A"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.metric)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMetricUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Metric
	}{
		{"number", "42.5", MetricOf(42.5)},
		{"sentinel string becomes invalid", `"N/A"`, Metric{}},
		{"null becomes invalid", "null", Metric{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metric
			if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.in, err)
			}
			if m != tt.want {
				t.Errorf("got %+v, want %+v", m, tt.want)
			}
		})
	}
}

func TestRoundedMetric(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{84.5674, 84.57},
		{21.499, 21.5},
		{2.025, 2.03},
		{-3.456, -3.46},
		{100, 100},
	}
	for _, tt := range tests {
		got := RoundedMetric(tt.in)
		if !got.Valid || got.Value != tt.want {
			t.Errorf("RoundedMetric(%v) = %+v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTwinMarshalRendersSentinels(t *testing.T) {
	twin := DigitalTwin{
		VehicleID:   "281474",
		EngineHours: RoundedMetric(2.025),
	}
	raw, err := json.Marshal(twin)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["engine_hours"] != 2.03 {
		t.Errorf("engine_hours = %v, want 2.03", decoded["engine_hours"])
	}
	if decoded["engine_rpm"] != Sentinel {
		t.Errorf("engine_rpm = %v, want sentinel", decoded["engine_rpm"])
	}
	if decoded["fuel_perc_remaining"] != Sentinel {
		t.Errorf("fuel_perc_remaining = %v, want sentinel", decoded["fuel_perc_remaining"])
	}
}

func TestChunkStatTypes(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		max   int
		want  [][]string
	}{
		{
			name:  "five types split four and one",
			types: DefaultStatTypes,
			max:   MaxStatTypesPerCall,
			want: [][]string{
				{StatEngineCoolantTempMilliC, StatAmbientAirTempMilliC, StatEngineRPM, StatOBDEngineSeconds},
				{StatEngineOilPressureKPa},
			},
		},
		{
			name:  "exact multiple",
			types: []string{"a", "b", "c", "d"},
			max:   2,
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "fewer than max is one batch",
			types: []string{"a", "b"},
			max:   4,
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "empty input",
			types: nil,
			max:   4,
			want:  nil,
		},
		{
			name:  "non-positive max",
			types: []string{"a"},
			max:   0,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChunkStatTypes(tt.types, tt.max)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkStatTypesBatchesCoverAllTypesOnce(t *testing.T) {
	seen := map[string]int{}
	for _, batch := range ChunkStatTypes(DefaultStatTypes, MaxStatTypesPerCall) {
		if len(batch) > MaxStatTypesPerCall {
			t.Fatalf("batch of %d exceeds the per-call limit", len(batch))
		}
		for _, st := range batch {
			seen[st]++
		}
	}
	for _, st := range DefaultStatTypes {
		if seen[st] != 1 {
			t.Errorf("stat type %s appeared %d times across batches", st, seen[st])
		}
	}
}
