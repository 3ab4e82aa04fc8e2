// Package backup serializes the watcher's configuration and endpoint state
// to a JSON document for disaster recovery, and restores it either by
// merging into the current store or by wiping and reloading.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Linhcute123/biendongsodu/internal/db"
)

// Version identifies the backup document format
const Version = 1

// Store is the persistence surface backup needs. *db.Database satisfies it.
type Store interface {
	GetSettings() (*db.Settings, error)
	UpdateSettings(s *db.Settings) error
	GetBots() ([]db.Bot, error)
	UpsertBotByName(name, token string) error
	GetSites() ([]db.Site, error)
	RestoreSite(s *db.Site) error
	Wipe() error
}

// SettingsDoc mirrors the settings row in a backup document
type SettingsDoc struct {
	PollInterval int      `json:"poll_interval"`
	Threshold    *float64 `json:"threshold"`
	ChatID       string   `json:"chat_id"`
}

// BotDoc is one bot credential in a backup document
type BotDoc struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// APIDoc is one tracked endpoint in a backup document
type APIDoc struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	BalanceField string     `json:"balanceField"`
	LastBalance  *float64   `json:"lastBalance"`
	LastChange   *time.Time `json:"lastChange"`
}

// Document is the full backup payload
type Document struct {
	Settings SettingsDoc `json:"settings"`
	Bots     []BotDoc    `json:"bots"`
	APIs     []APIDoc    `json:"apis"`
	Version  int         `json:"version"`
}

// Export captures the current settings, bots and endpoints
func Export(store Store) (*Document, error) {
	settings, err := store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	bots, err := store.GetBots()
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}

	sites, err := store.GetSites()
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}

	doc := &Document{
		Settings: SettingsDoc{
			PollInterval: settings.PollInterval,
			Threshold:    settings.Threshold,
			ChatID:       settings.ChatID,
		},
		Version: Version,
	}

	for _, b := range bots {
		doc.Bots = append(doc.Bots, BotDoc{ID: b.ID, Name: b.Name, Token: b.Token})
	}
	for _, s := range sites {
		doc.APIs = append(doc.APIs, APIDoc{
			ID:           s.ID,
			Name:         s.Name,
			URL:          s.URL,
			BalanceField: s.BalanceField,
			LastBalance:  s.LastBalance,
			LastChange:   s.LastChange,
		})
	}

	return doc, nil
}

// ExportJSON renders the backup document as indented JSON
func ExportJSON(store Store) ([]byte, error) {
	doc, err := Export(store)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import loads a backup document into the store. With wipe set, every bot
// and endpoint is removed first; otherwise bots and endpoints are upserted
// by name. Row ids are never preserved, so the default-bot selection is
// cleared rather than restored.
func Import(store Store, doc *Document, wipe bool) error {
	if doc == nil {
		return fmt.Errorf("backup document is empty")
	}

	if wipe {
		if err := store.Wipe(); err != nil {
			return err
		}
	}

	settings := &db.Settings{
		PollInterval: doc.Settings.PollInterval,
		Threshold:    doc.Settings.Threshold,
		ChatID:       doc.Settings.ChatID,
	}
	if err := store.UpdateSettings(settings); err != nil {
		return fmt.Errorf("failed to restore settings: %w", err)
	}

	for _, b := range doc.Bots {
		if b.Name == "" || b.Token == "" {
			continue
		}
		if err := store.UpsertBotByName(b.Name, b.Token); err != nil {
			return fmt.Errorf("failed to restore bot %q: %w", b.Name, err)
		}
	}

	for _, a := range doc.APIs {
		if a.Name == "" || a.URL == "" {
			continue
		}
		site := &db.Site{
			Name:         a.Name,
			URL:          a.URL,
			BalanceField: a.BalanceField,
			LastBalance:  a.LastBalance,
			LastChange:   a.LastChange,
		}
		// The both-or-neither invariant survives malformed documents
		if site.LastBalance == nil || site.LastChange == nil {
			site.LastBalance = nil
			site.LastChange = nil
		}
		if err := store.RestoreSite(site); err != nil {
			return fmt.Errorf("failed to restore endpoint %q: %w", a.Name, err)
		}
	}

	return nil
}

// ImportJSON parses raw backup JSON and loads it into the store
func ImportJSON(store Store, raw []byte, wipe bool) error {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid backup JSON: %w", err)
	}
	return Import(store, &doc, wipe)
}
