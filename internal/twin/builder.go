// Package twin turns raw, partially-missing telematics responses into
// canonical DigitalTwin records and derives their alert status.
package twin

import (
	"time"

	"fleet-twin/dashboard/internal/domain"
	"fleet-twin/dashboard/internal/samsara"
)

// locationTimeLayout is the display format for location timestamps.
const locationTimeLayout = "2006-01-02 15:04:05"

// Builder merges the four raw per-vehicle sources into one DigitalTwin.
// It performs no I/O; the clock is injectable so builds are deterministic
// under test.
type Builder struct {
	nowFn func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{nowFn: time.Now}
}

// Build constructs a fresh DigitalTwin for the vehicle identified by
// details.ID. The side maps are keyed by vehicle id; a missing entry in
// any of them degrades the dependent fields to sentinels, never an error.
func (b *Builder) Build(
	details *samsara.VehicleDetails,
	locations map[string]samsara.Location,
	stats map[string]map[string]float64,
	maintenance map[string]*samsara.MaintenanceRecord,
) *domain.DigitalTwin {
	t := &domain.DigitalTwin{
		VehicleID:              string(details.ID),
		VehicleName:            orSentinel(details.Name),
		Make:                   orSentinel(details.Make),
		Model:                  orSentinel(details.Model),
		Year:                   orSentinel(details.Year),
		LicensePlate:           orSentinel(details.LicensePlate),
		CurrentAddress:         domain.Sentinel,
		LocationUpdatedAt:      domain.Sentinel,
		DiagnosticTroubleCodes: []domain.DTC{},
		LastDataSync:           b.nowFn(),
		StatusAlert:            domain.StatusNormal,
		AlertColor:             domain.ColorGreen,
	}

	if loc, ok := locations[t.VehicleID]; ok {
		if loc.Latitude != nil {
			t.Latitude = domain.MetricOf(*loc.Latitude)
		}
		if loc.Longitude != nil {
			t.Longitude = domain.MetricOf(*loc.Longitude)
		}
		if loc.Speed != nil {
			// Upstream speed is passed through unconverted; the field
			// keeps its historical mph name.
			t.SpeedMPH = domain.RoundedMetric(*loc.Speed)
		}
		if loc.ReverseGeo.FormattedLocation != "" {
			t.CurrentAddress = loc.ReverseGeo.FormattedLocation
		}
		if loc.Time != "" {
			t.LocationUpdatedAt = formatLocationTime(loc.Time)
		}
	}

	vehicleStats := stats[t.VehicleID]
	if v, ok := vehicleStats[domain.StatOBDEngineSeconds]; ok {
		t.EngineHours = domain.RoundedMetric(v / 3600)
	}
	if v, ok := vehicleStats[domain.StatFuelPercent]; ok {
		t.FuelPercentRemaining = domain.RoundedMetric(v)
	}
	if v, ok := vehicleStats[domain.StatEngineOilPressureKPa]; ok {
		t.EngineOilPressureKPA = domain.RoundedMetric(v)
	}
	if v, ok := vehicleStats[domain.StatEngineCoolantTempMilliC]; ok {
		t.EngineCoolantTempC = domain.RoundedMetric(v / 1000)
	}
	if v, ok := vehicleStats[domain.StatAmbientAirTempMilliC]; ok {
		t.AmbientAirTempC = domain.RoundedMetric(v / 1000)
	}
	if v, ok := vehicleStats[domain.StatEngineRPM]; ok {
		t.EngineRPM = domain.MetricOf(v)
	}

	// Absence of a maintenance record means "no active faults".
	if record := maintenance[t.VehicleID]; record != nil {
		lights := record.J1939.CheckEngineLight
		t.CheckLightWarning = lights.WarningIsOn
		t.CheckLightEmissions = lights.EmissionsIsOn
		t.CheckLightProtect = lights.ProtectIsOn
		t.CheckLightStop = lights.StopIsOn
		if record.J1939.DiagnosticTroubleCodes != nil {
			t.DiagnosticTroubleCodes = record.J1939.DiagnosticTroubleCodes
		}
	}

	return t
}

// formatLocationTime reformats an ISO-8601 timestamp to local display
// time. An unparseable value is passed through unchanged.
func formatLocationTime(raw string) string {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return parsed.Local().Format(locationTimeLayout)
}

func orSentinel(v string) string {
	if v == "" {
		return domain.Sentinel
	}
	return v
}
