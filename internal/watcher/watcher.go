// Package watcher runs the balance polling loop: every configured interval
// it fetches each tracked endpoint's JSON, extracts the balance, classifies
// the change against the previous reading and dispatches Telegram
// notifications. One endpoint's failure never affects its siblings, and no
// per-endpoint error can stop the loop.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Linhcute123/biendongsodu/internal/classify"
	"github.com/Linhcute123/biendongsodu/internal/db"
	"github.com/Linhcute123/biendongsodu/internal/extract"
	"github.com/Linhcute123/biendongsodu/internal/notify"
)

const (
	fetchTimeout         = 15 * time.Second
	maxConcurrentFetches = 8
)

// ConfigStore supplies the runtime configuration, read fresh each cycle
type ConfigStore interface {
	GetSettings() (*db.Settings, error)
}

// EndpointRegistry supplies the tracked endpoints and persists poll results
type EndpointRegistry interface {
	GetSites() ([]db.Site, error)
	UpdateSiteBalance(id int64, balance float64, timestamp time.Time) error
	InsertChangeEntry(entry *db.ChangeEntry) error
}

// ChannelRegistry supplies the registered notification bots
type ChannelRegistry interface {
	GetBots() ([]db.Bot, error)
	GetBotByID(id int64) (*db.Bot, error)
}

// Notifier delivers a rendered message, best-effort
type Notifier interface {
	Dispatch(bots []db.Bot, chatID, text string)
}

// Watcher is the process-wide polling scheduler. Start is a one-shot
// latch: there is exactly one watcher goroutine per process and once
// started it runs until the process exits.
type Watcher struct {
	config     ConfigStore
	sites      EndpointRegistry
	channels   ChannelRegistry
	notifier   Notifier
	httpClient *http.Client

	startOnce sync.Once
	running   atomic.Bool
}

// New creates a watcher over the given stores and notifier
func New(config ConfigStore, sites EndpointRegistry, channels ChannelRegistry, notifier Notifier) *Watcher {
	return &Watcher{
		config:   config,
		sites:    sites,
		channels: channels,
		notifier: notifier,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// Running reports whether the watcher loop has been started
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Start launches the polling loop in the background. Subsequent calls are
// no-ops; the loop only stops when ctx is cancelled at process shutdown.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.running.Store(true)
		go w.run(ctx)
	})
}

func (w *Watcher) run(ctx context.Context) {
	log.Info("watcher started")

	for {
		w.RunCycle(ctx)

		// Read the interval fresh at sleep time so a settings change is
		// honored on the next wake instead of after a stale interval.
		interval := time.Duration(db.MinPollInterval) * time.Second
		if settings, err := w.config.GetSettings(); err == nil {
			interval = time.Duration(settings.PollInterval) * time.Second
		}

		select {
		case <-ctx.Done():
			log.Info("watcher stopped")
			w.running.Store(false)
			return
		case <-time.After(interval):
		}
	}
}

// RunCycle performs one full pass over every tracked endpoint. It is
// exported for the -oneshot flag and for tests; the loop calls it directly.
func (w *Watcher) RunCycle(ctx context.Context) {
	settings, err := w.config.GetSettings()
	if err != nil {
		log.Errorf("cycle skipped, failed to read settings: %v", err)
		return
	}

	bots := w.resolveChannels(settings)

	sites, err := w.sites.GetSites()
	if err != nil {
		log.Errorf("cycle skipped, failed to list endpoints: %v", err)
		return
	}

	sem := make(chan struct{}, maxConcurrentFetches)
	var wg sync.WaitGroup
	for i := range sites {
		site := sites[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("site", site.Name).Errorf("endpoint processing panicked: %v", r)
				}
			}()
			w.processSite(ctx, &site, settings, bots)
		}()
	}
	wg.Wait()
}

// resolveChannels returns the bot list used for every send this cycle:
// just the default bot when one is configured and still exists, otherwise
// all registered bots (fan-out).
func (w *Watcher) resolveChannels(settings *db.Settings) []db.Bot {
	if settings.DefaultBotID != nil {
		bot, err := w.channels.GetBotByID(*settings.DefaultBotID)
		if err == nil {
			return []db.Bot{*bot}
		}
		log.Warnf("default bot %d not found, falling back to all bots", *settings.DefaultBotID)
	}

	bots, err := w.channels.GetBots()
	if err != nil {
		log.Errorf("failed to list bots: %v", err)
		return nil
	}
	return bots
}

func (w *Watcher) processSite(ctx context.Context, site *db.Site, settings *db.Settings, bots []db.Bot) {
	doc, err := w.fetchJSON(ctx, site.URL)
	if err != nil {
		// Recoverable: skip this endpoint for this cycle, keep prior state
		log.WithField("site", site.Name).Warnf("fetch failed: %v", err)
		return
	}

	balance, found := extract.Extract(doc, site.BalanceField)
	if !found {
		log.WithField("site", site.Name).Warn("no balance field found in response")
		return
	}

	change := classify.Classify(site.LastBalance, balance, settings.Threshold)
	now := time.Now()

	switch change.Kind {
	case classify.FirstReading:
		// Baseline only, no notification
		if err := w.sites.UpdateSiteBalance(site.ID, balance, now); err != nil {
			log.WithField("site", site.Name).Errorf("failed to persist baseline: %v", err)
		}

	case classify.Deposit:
		w.notifier.Dispatch(bots, settings.ChatID,
			notify.DepositMessage(site.Name, change.Magnitude, balance, now))
		w.persistChange(site, change, balance, now)

	case classify.Payment:
		w.notifier.Dispatch(bots, settings.ChatID,
			notify.PaymentMessage(site.Name, change.Magnitude, balance, now))
		w.persistChange(site, change, balance, now)

	case classify.NoChange:
		// Balance value unchanged, nothing to persist
	}

	// Independent of the change notification; can co-occur with a payment
	if change.CrossedBelowThreshold {
		w.notifier.Dispatch(bots, settings.ChatID,
			notify.ThresholdMessage(site.Name, balance, *settings.Threshold, now))
	}
}

func (w *Watcher) persistChange(site *db.Site, change classify.Change, balance float64, now time.Time) {
	if err := w.sites.UpdateSiteBalance(site.ID, balance, now); err != nil {
		log.WithField("site", site.Name).Errorf("failed to persist balance: %v", err)
		return
	}

	delta := change.Magnitude
	if change.Kind == classify.Payment {
		delta = -delta
	}
	entry := &db.ChangeEntry{
		SiteID:    site.ID,
		Kind:      change.Kind.String(),
		Delta:     delta,
		Balance:   balance,
		Timestamp: now,
	}
	if err := w.sites.InsertChangeEntry(entry); err != nil {
		log.WithField("site", site.Name).Errorf("failed to append change log: %v", err)
	}
}

func (w *Watcher) fetchJSON(ctx context.Context, url string) (any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	return doc, nil
}
