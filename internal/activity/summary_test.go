package activity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lildude/lastactivity/internal/strava"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestSummariseMissingFields(t *testing.T) {
	s := Summarise(&strava.SummaryActivity{ID: 1, Name: "Indoor", Type: "VirtualRide"}, Imperial, language.BritishEnglish)

	assert.Equal(t, "VirtualRide", s.SportType)
	assert.Nil(t, s.Distance)
	assert.Nil(t, s.FormattedDistance)
	assert.Nil(t, s.Hours)
	assert.Nil(t, s.Minutes)
	assert.Nil(t, s.FormattedPace)
	assert.Nil(t, s.Latitude)
	assert.Nil(t, s.Longitude)
	assert.Nil(t, s.SummaryPolyline)
	assert.Nil(t, s.Path)
	assert.Nil(t, s.ActivityDate)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"distance":null`)
	assert.Contains(t, string(data), `"path":null`)
}

func TestSummariseZeroDistanceHasNoPace(t *testing.T) {
	zero := 0.0
	moving := int64(3725)
	s := Summarise(&strava.SummaryActivity{Distance: &zero, MovingTime: &moving}, Metric, language.BritishEnglish)

	assert.Equal(t, 0.0, *s.Distance)
	assert.Equal(t, 1, *s.Hours)
	assert.Equal(t, 2, *s.Minutes)
	assert.Nil(t, s.FormattedPace)
}

func TestFormatPace(t *testing.T) {
	assert.Equal(t, "4:50 /mi", formatPace(290.4, "mi"))
	assert.Equal(t, "5:00 /km", formatPace(299.6, "km"))
	assert.Equal(t, "65:05 /mi", formatPace(3905, "mi"))
}

func TestMostRecent(t *testing.T) {
	assert.Nil(t, mostRecent(nil))

	day := func(d int) time.Time { return time.Date(2018, 5, d, 0, 0, 0, 0, time.UTC) }
	got := mostRecent([]strava.SummaryActivity{
		{ID: 1, StartDate: day(1)},
		{ID: 3, StartDate: day(3)},
		{ID: 2, StartDate: day(2)},
	})
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
}
