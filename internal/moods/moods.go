// Package moods groups a user's analyses into mood profiles by clustering
// their detected-emotion score vectors with k-means.
package moods

import (
	"fmt"
	"slices"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Config holds mood clustering parameters.
type Config struct {
	NumProfiles    int // Number of clusters to create (default: 3)
	MinProfileSize int // Smaller clusters are dropped
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumProfiles:    3,
		MinProfileSize: 1,
	}
}

// Observation is one analysis to cluster.
type Observation struct {
	AnalysisID int64
	OccurredAt time.Time
	Emotions   map[string]float64 // label -> score
}

// Profile is a cluster of analyses with a similar emotional mix.
type Profile struct {
	Name        string             `json:"name"`     // "Calm & Content: Jan 15, 2024 - Feb 3, 2024"
	Dominant    string             `json:"dominant"` // highest centroid axis
	Size        int                `json:"size"`
	Centroid    map[string]float64 `json:"centroid"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	AnalysisIDs []int64            `json:"analysis_ids"`
}

// scoreObservation wraps an Observation to implement clusters.Observation.
type scoreObservation struct {
	obs    *Observation
	coords clusters.Coordinates
}

func (o scoreObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o scoreObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Detect clusters observations by the similarity of their emotion scores.
// Observations without scores are ignored. With fewer scored observations
// than profiles, no profiles are returned. Profiles are ordered most recent
// first.
//
// The vector axes are the labels in base, in order, followed by any other
// label seen in the observations, sorted.
func Detect(observations []Observation, base []string, cfg Config) ([]Profile, error) {
	if cfg.NumProfiles <= 0 {
		cfg.NumProfiles = DefaultConfig().NumProfiles
	}

	var scored []*Observation
	for i := range observations {
		if len(observations[i].Emotions) > 0 {
			scored = append(scored, &observations[i])
		}
	}
	if len(scored) < cfg.NumProfiles {
		return nil, nil
	}

	axes := Axes(scored, base)

	var obs clusters.Observations
	for _, o := range scored {
		obs = append(obs, scoreObservation{obs: o, coords: vector(o, axes)})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumProfiles)
	if err != nil {
		return nil, fmt.Errorf("partitioning %d observations: %w", len(obs), err)
	}

	var profiles []Profile
	for _, cluster := range result {
		var members []*Observation
		for _, o := range cluster.Observations {
			if so, ok := o.(scoreObservation); ok {
				members = append(members, so.obs)
			}
		}
		if len(members) == 0 || len(members) < cfg.MinProfileSize {
			continue
		}

		slices.SortFunc(members, func(a, b *Observation) int {
			return a.OccurredAt.Compare(b.OccurredAt)
		})

		centroid := mean(members, axes)

		ids := make([]int64, len(members))
		for i, m := range members {
			ids[i] = m.AnalysisID
		}

		start := members[0].OccurredAt
		end := members[len(members)-1].OccurredAt
		profiles = append(profiles, Profile{
			Name:        formatProfileName(moodName(centroid), start, end),
			Dominant:    dominant(centroid, axes),
			Size:        len(members),
			Centroid:    centroid,
			StartDate:   start,
			EndDate:     end,
			AnalysisIDs: ids,
		})
	}

	slices.SortFunc(profiles, func(a, b Profile) int {
		return b.EndDate.Compare(a.EndDate) // Descending
	})
	return profiles, nil
}

// Axes returns the vector axes: base labels first, then the remaining
// labels found in observations, sorted.
func Axes(observations []*Observation, base []string) []string {
	axes := slices.Clone(base)
	var extra []string
	for _, o := range observations {
		for label := range o.Emotions {
			if !slices.Contains(axes, label) && !slices.Contains(extra, label) {
				extra = append(extra, label)
			}
		}
	}
	slices.Sort(extra)
	return append(axes, extra...)
}

// vector extracts the scores of an observation along axes. Missing labels
// score 0.
func vector(o *Observation, axes []string) clusters.Coordinates {
	coords := make(clusters.Coordinates, len(axes))
	for i, name := range axes {
		coords[i] = o.Emotions[name]
	}
	return coords
}

// mean averages member scores along axes. The Center kmeans reports can be
// stale when the first assignment never changes.
func mean(members []*Observation, axes []string) map[string]float64 {
	centroid := make(map[string]float64, len(axes))
	for _, m := range members {
		for _, name := range axes {
			centroid[name] += m.Emotions[name]
		}
	}
	for _, name := range axes {
		centroid[name] /= float64(len(members))
	}
	return centroid
}

// dominant returns the axis with the highest centroid value. Ties go to the
// earlier axis.
func dominant(centroid map[string]float64, axes []string) string {
	best := ""
	for _, name := range axes {
		if best == "" || centroid[name] > centroid[best] {
			best = name
		}
	}
	return best
}

// formatProfileName combines a mood name with a date range.
func formatProfileName(name string, start, end time.Time) string {
	const dateFormat = "Jan 2, 2006"
	startStr := start.Format(dateFormat)
	endStr := end.Format(dateFormat)

	if startStr == endStr {
		return fmt.Sprintf("%s: %s", name, startStr)
	}
	return fmt.Sprintf("%s: %s - %s", name, startStr, endStr)
}
