package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type AlertType string

const (
	AlertDTC         AlertType = "ENGINE_FAULT_CODES"
	AlertCheckEngine AlertType = "CHECK_ENGINE_LIGHT"
	AlertLowFuel     AlertType = "LOW_FUEL"
	AlertOverheat    AlertType = "COOLANT_OVERHEAT"
	AlertIdling      AlertType = "IDLING"
)

// Thresholds for the legacy rules.
const (
	FuelLowThresholdPercent = 15.0
	CoolantTempHighC        = 100.0
	IdleThresholdSpeedMPH   = 1.0
)

// AlertRule inspects a built twin and, when it fires, contributes one
// human-readable reason to the twin's status line.
type AlertRule struct {
	Type      AlertType
	Evaluator func(t *DigitalTwin) (string, bool)
}

// DefaultAlertRules is the active rule set: DTC presence and check-engine
// lights. Order is fixed; every rule runs on every twin.
var DefaultAlertRules = []AlertRule{
	{
		Type: AlertDTC,
		Evaluator: func(t *DigitalTwin) (string, bool) {
			if len(t.DiagnosticTroubleCodes) == 0 {
				return "", false
			}
			codes := make([]string, 0, len(t.DiagnosticTroubleCodes))
			for _, dtc := range t.DiagnosticTroubleCodes {
				codes = append(codes, fmt.Sprintf("SPN: %d (FMI: %d)", dtc.SPNID, dtc.FMIID))
			}
			return fmt.Sprintf("Fallas de motor (DTCs: %s)", strings.Join(codes, "; ")), true
		},
	},
	{
		Type: AlertCheckEngine,
		Evaluator: func(t *DigitalTwin) (string, bool) {
			labels := make([]string, 0, 4)
			if t.CheckLightWarning {
				labels = append(labels, "Advertencia")
			}
			if t.CheckLightEmissions {
				labels = append(labels, "Emisiones")
			}
			if t.CheckLightProtect {
				labels = append(labels, "Protección")
			}
			if t.CheckLightStop {
				labels = append(labels, "Detener")
			}
			if len(labels) == 0 {
				return "", false
			}
			return fmt.Sprintf("Luz de Check Engine ON (%s)", strings.Join(labels, ", ")), true
		},
	},
}

// LegacyAlertRules existed in earlier dashboard iterations and were later
// dropped. They stay available behind a config toggle, off by default.
var LegacyAlertRules = []AlertRule{
	{
		Type: AlertLowFuel,
		Evaluator: func(t *DigitalTwin) (string, bool) {
			if !t.FuelPercentRemaining.Valid || t.FuelPercentRemaining.Value >= FuelLowThresholdPercent {
				return "", false
			}
			return fmt.Sprintf("Bajo combustible (%s%%)", trimFloat(t.FuelPercentRemaining.Value)), true
		},
	},
	{
		Type: AlertOverheat,
		Evaluator: func(t *DigitalTwin) (string, bool) {
			if !t.EngineCoolantTempC.Valid || t.EngineCoolantTempC.Value <= CoolantTempHighC {
				return "", false
			}
			return fmt.Sprintf("Sobrecalentamiento (%s°C)", trimFloat(t.EngineCoolantTempC.Value)), true
		},
	},
	{
		Type: AlertIdling,
		Evaluator: func(t *DigitalTwin) (string, bool) {
			engineOn := t.EngineRPM.Valid && t.EngineRPM.Value > 0
			if !t.SpeedMPH.Valid || t.SpeedMPH.Value > IdleThresholdSpeedMPH || !engineOn {
				return "", false
			}
			return fmt.Sprintf("Ralentí (velocidad %s mph)", trimFloat(t.SpeedMPH.Value)), true
		},
	},
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
