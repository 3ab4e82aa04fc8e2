package db

import (
	"time"
)

// Settings holds the mutable runtime configuration shared by the watcher
// and the dashboard. It lives in a single row and is read fresh at the
// top of every poll cycle.
type Settings struct {
	PollInterval int      `json:"poll_interval"`
	Threshold    *float64 `json:"threshold"`
	ChatID       string   `json:"chat_id"`
	DefaultBotID *int64   `json:"default_bot_id"`
}

// Bot is a Telegram bot credential capable of sending to the configured chat
type Bot struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Token string `json:"token" db:"token"`
}

// Site is a tracked balance endpoint. LastBalance and LastChange are both
// nil until the first successful poll, then always set together.
type Site struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	URL          string     `json:"url" db:"url"`
	BalanceField string     `json:"balance_field" db:"balance_field"`
	LastBalance  *float64   `json:"last_balance" db:"last_balance"`
	LastChange   *time.Time `json:"last_change" db:"last_change"`
}

// ChangeEntry is one row of the flat balance change log
type ChangeEntry struct {
	ID        int64     `json:"id" db:"id"`
	SiteID    int64     `json:"site_id" db:"site_id"`
	Kind      string    `json:"kind" db:"kind"` // "deposit" or "payment"
	Delta     float64   `json:"delta" db:"delta"`
	Balance   float64   `json:"balance" db:"balance"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
