package moods

// moodName describes a centroid with a 2x2 arousal/valence quadrant.
//
// Arousal is the share of high-activation labels (happy, energetic, angry)
// against low-activation ones (relaxed, sad). Valence is the share of
// positive labels (happy, energetic, relaxed) against negative ones (sad,
// angry). Labels outside both sets are ignored.
//
// Quadrants:
//   - High Arousal + Positive = "Upbeat & Energized"
//   - High Arousal + Negative = "Tense & Agitated"
//   - Low Arousal  + Positive = "Calm & Content"
//   - Low Arousal  + Negative = "Low & Reflective"
func moodName(centroid map[string]float64) string {
	high := centroid["happy"] + centroid["energetic"] + centroid["angry"]
	low := centroid["relaxed"] + centroid["sad"]
	positive := centroid["happy"] + centroid["energetic"] + centroid["relaxed"]
	negative := centroid["sad"] + centroid["angry"]

	highArousal := high > low
	positiveValence := positive >= negative

	switch {
	case highArousal && positiveValence:
		return "Upbeat & Energized"
	case highArousal && !positiveValence:
		return "Tense & Agitated"
	case !highArousal && positiveValence:
		return "Calm & Content"
	default:
		return "Low & Reflective"
	}
}
