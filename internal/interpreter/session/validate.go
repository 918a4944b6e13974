package session

import (
	"fmt"

	"drawing-interpreter/internal/interpreter/models"
)

// Validate returns data quality warnings for a finished run. It never fails.
func Validate(
	elements []models.RecognizedElement,
	correlations []models.ViewCorrelation,
	merged []models.MergedElement,
	uncorrelatedRatio float64,
) []string {
	var warnings []string

	if len(elements) > 0 {
		linked := make(map[string]bool, 2*len(correlations))
		for _, c := range correlations {
			linked[c.PlanElementID] = true
			linked[c.OtherElementID] = true
		}
		uncorrelated := 0
		for _, e := range elements {
			if !linked[e.ID] {
				uncorrelated++
			}
		}
		ratio := float64(uncorrelated) / float64(len(elements))
		if ratio > uncorrelatedRatio {
			warnings = append(warnings, fmt.Sprintf(
				"%d of %d recognized elements (%.0f%%) are uncorrelated across views",
				uncorrelated, len(elements), ratio*100))
		}
	}

	for _, m := range merged {
		if m.Height <= 0 {
			warnings = append(warnings, fmt.Sprintf("merged %s %s has no height", m.Type, m.ID))
		}
	}
	return warnings
}
