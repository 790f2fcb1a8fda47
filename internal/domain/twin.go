package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Sentinel marks a field whose value could not be derived from any
// upstream source. It is what the dashboard renders for missing data.
const Sentinel = "N/A"

// Metric is an optional numeric reading. Invalid metrics marshal as the
// sentinel string so a missing value never looks like a real zero.
type Metric struct {
	Value float64
	Valid bool
}

func MetricOf(v float64) Metric {
	return Metric{Value: v, Valid: true}
}

// RoundedMetric rounds to two decimals, the precision every derived
// engine/position value is reported at.
func RoundedMetric(v float64) Metric {
	return MetricOf(math.Round(v*100) / 100)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return json.Marshal(Sentinel)
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	// null leaves the target untouched in encoding/json, which would turn
	// a missing value into a real zero.
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*m = Metric{}
		return nil
	}
	*m = MetricOf(v)
	return nil
}

// DTC is a J1939 diagnostic trouble code identified by its SPN/FMI pair.
type DTC struct {
	SPNID           int64  `json:"spnId"`
	FMIID           int64  `json:"fmiId"`
	FMIText         string `json:"fmiText"`
	OccurrenceCount int64  `json:"occurrenceCount"`
}

type AlertColor string

const (
	ColorGreen AlertColor = "green"
	ColorRed   AlertColor = "red"
)

const (
	// StatusNormal is the status of a twin with no active alert reasons.
	StatusNormal = "OPERANDO NORMALMENTE"

	// StatusOffline is a reserved status. No producer sets it today; the
	// evaluator only refuses to overwrite it with StatusNormal.
	StatusOffline = "OFFLINE o SIN DATOS"

	// AlertPrefix starts every status carrying at least one alert reason.
	AlertPrefix = "ALERTA: "
)

// DigitalTwin is the canonical per-vehicle record built fresh on every
// refresh cycle. It is never mutated after construction; a re-fetch
// produces a whole new record that replaces the old one.
type DigitalTwin struct {
	VehicleID    string `json:"vehicle_id"`
	VehicleName  string `json:"vehicle_name"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         string `json:"year"`
	LicensePlate string `json:"license_plate"`

	Latitude          Metric `json:"latitude"`
	Longitude         Metric `json:"longitude"`
	SpeedMPH          Metric `json:"speed_mph"`
	CurrentAddress    string `json:"current_address"`
	LocationUpdatedAt string `json:"location_updated_at"`

	EngineHours          Metric `json:"engine_hours"`
	FuelPercentRemaining Metric `json:"fuel_perc_remaining"`
	EngineOilPressureKPA Metric `json:"engine_oil_pressure_kpa"`
	EngineCoolantTempC   Metric `json:"engine_coolant_temperature_c"`
	EngineRPM            Metric `json:"engine_rpm"`
	AmbientAirTempC      Metric `json:"ambient_air_temperature_c"`

	CheckLightWarning   bool `json:"engine_check_light_warning"`
	CheckLightEmissions bool `json:"engine_check_light_emissions"`
	CheckLightProtect   bool `json:"engine_check_light_protect"`
	CheckLightStop      bool `json:"engine_check_light_stop"`

	DiagnosticTroubleCodes []DTC `json:"diagnostic_trouble_codes"`

	LastDataSync time.Time  `json:"last_data_sync"`
	StatusAlert  string     `json:"status_alert"`
	AlertColor   AlertColor `json:"alert_color"`
}

// Stat types consumed from the upstream stats endpoint. The endpoint
// accepts at most MaxStatTypesPerCall types per request.
const (
	StatEngineCoolantTempMilliC = "engineCoolantTemperatureMilliC"
	StatAmbientAirTempMilliC    = "ambientAirTemperatureMilliC"
	StatEngineRPM               = "engineRpm"
	StatOBDEngineSeconds        = "obdEngineSeconds"
	StatEngineOilPressureKPa    = "engineOilPressureKPa"

	// StatFuelPercent is understood by the builder but not requested by
	// default; the upstream rejects it in combination with other types.
	StatFuelPercent = "fuelPercent"
)

const MaxStatTypesPerCall = 4

// DefaultStatTypes is the fixed enumeration requested on every refresh.
var DefaultStatTypes = []string{
	StatEngineCoolantTempMilliC,
	StatAmbientAirTempMilliC,
	StatEngineRPM,
	StatOBDEngineSeconds,
	StatEngineOilPressureKPa,
}

// ChunkStatTypes partitions stat types into batches of at most max items.
// Batches never overlap, so merging their responses is a plain key union.
func ChunkStatTypes(types []string, max int) [][]string {
	if max <= 0 || len(types) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(types)+max-1)/max)
	for start := 0; start < len(types); start += max {
		end := start + max
		if end > len(types) {
			end = len(types)
		}
		batches = append(batches, types[start:end])
	}
	return batches
}
