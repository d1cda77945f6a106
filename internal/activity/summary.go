package activity

import (
	"fmt"
	"math"
	"time"

	"github.com/lildude/lastactivity/internal/polyline"
	"github.com/lildude/lastactivity/internal/strava"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	Imperial = "imperial"
	Metric   = "metric"

	metresToMiles = 0.000621371
	metresToKm    = 0.001
)

// Summary is what the renderer draws for the latest activity. Values Strava
// did not send are nil and encode as JSON null.
type Summary struct {
	ID                int64         `json:"id,omitempty"`
	Name              *string       `json:"name"`
	SportType         string        `json:"sportType,omitempty"`
	ActivityDate      *time.Time    `json:"activityDate"`
	Distance          *float64      `json:"distance"`
	DistanceUnits     string        `json:"distanceUnits"`
	FormattedDistance *string       `json:"formattedDistance"`
	Hours             *int          `json:"hours"`
	Minutes           *int          `json:"minutes"`
	FormattedPace     *string       `json:"formattedPace"`
	Latitude          *float64      `json:"latitude"`
	Longitude         *float64      `json:"longitude"`
	SummaryPolyline   *string       `json:"summaryPolyLine"`
	Path              polyline.Path `json:"path"`
}

type units struct {
	label  string
	factor float64
}

func unitsFor(system string) units {
	if system == Metric {
		return units{label: "km", factor: metresToKm}
	}
	return units{label: "mi", factor: metresToMiles}
}

// Summarise converts a Strava activity for display. A nil activity gives an
// empty summary.
func Summarise(a *strava.SummaryActivity, system string, locale language.Tag) *Summary {
	u := unitsFor(system)
	s := &Summary{DistanceUnits: u.label}
	if a == nil {
		return s
	}

	s.ID = a.ID
	s.SportType = a.SportType
	if s.SportType == "" {
		s.SportType = a.Type
	}
	if a.Name != "" {
		name := a.Name
		s.Name = &name
	}
	if !a.StartDate.IsZero() {
		d := a.StartDate
		s.ActivityDate = &d
	}

	if a.Distance != nil {
		d := math.Round(*a.Distance*u.factor*100) / 100
		s.Distance = &d
		fd := message.NewPrinter(locale).Sprintf("%.2f %s", d, u.label)
		s.FormattedDistance = &fd
	}

	if a.MovingTime != nil {
		minutes := int(*a.MovingTime / 60)
		h, m := minutes/60, minutes%60
		s.Hours, s.Minutes = &h, &m

		if a.Distance != nil && *a.Distance > 0 {
			pace := formatPace(float64(*a.MovingTime) / (*a.Distance * u.factor), u.label)
			s.FormattedPace = &pace
		}
	}

	if len(a.StartLatlng) == 2 {
		lat, lng := a.StartLatlng[0], a.StartLatlng[1]
		s.Latitude, s.Longitude = &lat, &lng
	}

	if a.Map != nil && a.Map.SummaryPolyline != "" {
		encoded := a.Map.SummaryPolyline
		s.SummaryPolyline = &encoded
		s.Path = polyline.Decode(encoded)
	}

	return s
}

// formatPace renders seconds per unit as m:ss /unit.
func formatPace(secondsPerUnit float64, label string) string {
	total := int(math.Round(secondsPerUnit))
	return fmt.Sprintf("%d:%02d /%s", total/60, total%60, label)
}

// mostRecent returns the activity that started last. Strava orders the list
// ascending when after is set, so the position in the slice is not relied on.
func mostRecent(activities []strava.SummaryActivity) *strava.SummaryActivity {
	var latest *strava.SummaryActivity
	for i := range activities {
		if latest == nil || activities[i].StartDate.After(latest.StartDate) {
			latest = &activities[i]
		}
	}
	return latest
}
