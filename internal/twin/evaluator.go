package twin

import (
	"strings"

	"fleet-twin/dashboard/internal/domain"
)

// Evaluator derives the status line and severity color for a built twin.
// Every rule runs on every twin; each firing rule contributes one reason.
type Evaluator struct {
	rules []domain.AlertRule
}

// NewEvaluator returns an evaluator with the active rule set. The legacy
// threshold rules from earlier dashboard iterations are appended only
// when requested.
func NewEvaluator(includeLegacyRules bool) *Evaluator {
	rules := make([]domain.AlertRule, 0, len(domain.DefaultAlertRules)+len(domain.LegacyAlertRules))
	rules = append(rules, domain.DefaultAlertRules...)
	if includeLegacyRules {
		rules = append(rules, domain.LegacyAlertRules...)
	}
	return &Evaluator{rules: rules}
}

// Evaluate returns the twin's status line and alert color. The color is
// red exactly when at least one reason fired.
func (e *Evaluator) Evaluate(t *domain.DigitalTwin) (string, domain.AlertColor) {
	reasons := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		if reason, fired := rule.Evaluator(t); fired {
			reasons = append(reasons, reason)
		}
	}

	if len(reasons) > 0 {
		return domain.AlertPrefix + strings.Join(reasons, "; "), domain.ColorRed
	}
	if t.StatusAlert == domain.StatusOffline {
		// Reserved offline state; nothing sets it today, but an offline
		// twin must not be relabeled as operating normally.
		return t.StatusAlert, t.AlertColor
	}
	return domain.StatusNormal, domain.ColorGreen
}
