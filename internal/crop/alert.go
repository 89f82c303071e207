package crop

import "fmt"

// criticalDeficit is the moisture shortfall (percentage points) above which
// an alert becomes critical.
const criticalDeficit = 20.0

// DeriveAlert computes the irrigation alert for a predicted crop at the given
// soil moisture. It returns false for the sentinel labels.
func DeriveAlert(label string, moisture float64) (Alert, bool) {
	if label == LabelWaiting || label == LabelError {
		return Alert{}, false
	}

	need := WaterNeed(label)
	deficit := need - moisture

	switch {
	case deficit > criticalDeficit:
		return Alert{
			Level:   AlertCritical,
			Message: fmt.Sprintf("CRITICAL: %s needs %.0f%% soil moisture but only %.0f%% is available. Irrigate immediately!", label, need, moisture),
		}, true
	case deficit > 0:
		return Alert{
			Level:   AlertWarning,
			Message: fmt.Sprintf("Warning: soil moisture is %.0f%% below the %.0f%% that %s needs. Plan irrigation soon.", deficit, need, label),
		}, true
	default:
		return Alert{
			Level:   AlertNormal,
			Message: fmt.Sprintf("Soil moisture is optimal for %s.", label),
		}, true
	}
}
