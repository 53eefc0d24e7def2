package matcher

import "fmt"

// Weights controls how much each signal adds to a pair's score.
type Weights struct {
	Document float64 `json:"document" mapstructure:"document"`
	Name     float64 `json:"name" mapstructure:"name"`
	Location float64 `json:"location" mapstructure:"location"`
	GeoNear  float64 `json:"geo_near" mapstructure:"geo_near"`
	GeoFar   float64 `json:"geo_far" mapstructure:"geo_far"`
	Date     float64 `json:"date" mapstructure:"date"`
}

// DefaultWeights returns the standard signal weights.
func DefaultWeights() Weights {
	return Weights{
		Document: 3,
		Name:     4,
		Location: 2,
		GeoNear:  3,
		GeoFar:   1.5,
		Date:     2,
	}
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	fields := map[string]float64{
		"document": w.Document,
		"name":     w.Name,
		"location": w.Location,
		"geo_near": w.GeoNear,
		"geo_far":  w.GeoFar,
		"date":     w.Date,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("weight %s must be >= 0, got %v", name, v)
		}
	}
	return nil
}

// Thresholds holds the cutoffs that decide when a signal fires and when a
// pair counts as a candidate.
type Thresholds struct {
	NameSimilarity     float64 `json:"name_similarity" mapstructure:"name_similarity"`
	LocationSimilarity float64 `json:"location_similarity" mapstructure:"location_similarity"`
	GeoNearKm          float64 `json:"geo_near_km" mapstructure:"geo_near_km"`
	GeoFarKm           float64 `json:"geo_far_km" mapstructure:"geo_far_km"`
	DateWindowDays     int     `json:"date_window_days" mapstructure:"date_window_days"`
	MinScore           float64 `json:"min_score" mapstructure:"min_score"`
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NameSimilarity:     0.3,
		LocationSimilarity: 0.3,
		GeoNearKm:          5,
		GeoFarKm:           10,
		DateWindowDays:     14,
		MinScore:           3,
	}
}

// Validate checks that the thresholds are in range and consistent.
func (t Thresholds) Validate() error {
	if t.NameSimilarity < 0 || t.NameSimilarity > 1 {
		return fmt.Errorf("name_similarity must be between 0 and 1")
	}
	if t.LocationSimilarity < 0 || t.LocationSimilarity > 1 {
		return fmt.Errorf("location_similarity must be between 0 and 1")
	}
	if t.GeoNearKm <= 0 {
		return fmt.Errorf("geo_near_km must be greater than 0")
	}
	if t.GeoFarKm < t.GeoNearKm {
		return fmt.Errorf("geo_far_km (%v) must be >= geo_near_km (%v)", t.GeoFarKm, t.GeoNearKm)
	}
	if t.DateWindowDays < 0 {
		return fmt.Errorf("date_window_days must be >= 0")
	}
	if t.MinScore < 0 {
		return fmt.Errorf("min_score must be >= 0")
	}
	return nil
}
