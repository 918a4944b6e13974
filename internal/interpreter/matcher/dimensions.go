package matcher

import "drawing-interpreter/internal/interpreter/models"

// AssociateDimensions attaches every dimension annotation lying within
// tolerance of an element's bounds. It runs before the elements leave the
// matcher.
func AssociateDimensions(elements []models.RecognizedElement, annotations []models.Annotation, tolerance float64) {
	for i := range elements {
		area := elements[i].Bounds.Expand(tolerance)
		for _, a := range annotations {
			if !a.IsDimension() || !area.Contains(a.Position) {
				continue
			}
			elements[i].Dimensions = append(elements[i].Dimensions, models.ExtractedDimension{
				Value:    *a.Value,
				Unit:     a.Unit,
				Text:     a.Text,
				Position: a.Position,
			})
		}
	}
}
