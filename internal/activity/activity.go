// Package activity runs the fetch cycle: get a valid token, list the athlete's
// recent activities and summarise the latest one for the map widget.
package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lildude/lastactivity/internal/client"
	"github.com/lildude/lastactivity/internal/strava"
	"github.com/lildude/lastactivity/internal/token"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// ErrCycleInProgress is returned when a fetch cycle is started while another is running.
var ErrCycleInProgress = errors.New("fetch cycle already in progress")

// TokenManager runs an API call with a valid token. Satisfied by *token.Manager.
type TokenManager interface {
	FetchWithAutoRefresh(ctx context.Context, fn token.RequestFunc) error
}

type Options struct {
	DaysToQuery  int
	BeforeOffset time.Duration
	Units        string
	Locale       string
	Logger       logrus.FieldLogger
	Now          func() time.Time
}

// Fetcher is the activity fetcher. Each FetchCycle is independent; nothing
// is carried between cycles.
type Fetcher struct {
	tokens TokenManager
	client *client.Client
	opts   Options
	locale language.Tag

	running sync.Mutex
}

func NewFetcher(tm TokenManager, c *client.Client, opts Options) *Fetcher {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DaysToQuery <= 0 {
		opts.DaysToQuery = 7
	}
	locale, err := language.Parse(opts.Locale)
	if err != nil {
		locale = language.BritishEnglish
	}
	return &Fetcher{tokens: tm, client: c, opts: opts, locale: locale}
}

// FetchCycle performs one complete attempt to fetch and summarise the latest
// activity. Errors are the token package's AccessTokenError, StravaFetchError
// or RateLimitError, or ErrCycleInProgress.
func (f *Fetcher) FetchCycle(ctx context.Context) (*Summary, error) {
	if !f.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer f.running.Unlock()

	log := f.opts.Logger.WithField("cycle_id", uuid.NewString())
	now := f.opts.Now()
	list := strava.ListOptions{
		Before: now.Add(-f.opts.BeforeOffset),
		After:  now.AddDate(0, 0, -f.opts.DaysToQuery),
	}

	var activities []strava.SummaryActivity
	err := f.tokens.FetchWithAutoRefresh(ctx, func(ctx context.Context, accessToken string) error {
		var err error
		activities, err = strava.ListActivities(ctx, f.client, accessToken, list)
		return err
	})
	if err != nil {
		log.WithError(err).Error("fetch cycle failed")
		return nil, err
	}

	latest := mostRecent(activities)
	if latest == nil {
		log.WithField("days", f.opts.DaysToQuery).Info("no activities in window")
	} else {
		log.WithFields(logrus.Fields{"activity_id": latest.ID, "name": latest.Name}).Info("fetched latest activity")
		if latest.Map == nil || latest.Map.SummaryPolyline == "" {
			log.WithField("activity_id", latest.ID).Warn("activity has no route")
		}
	}

	return Summarise(latest, f.opts.Units, f.locale), nil
}
