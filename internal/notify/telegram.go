// Package notify delivers watcher notifications to Telegram bots.
// Delivery is best-effort: a failed send is logged and never retried, and
// one bot's failure does not stop sends through the remaining bots.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Linhcute123/biendongsodu/internal/db"
)

const defaultAPIBase = "https://api.telegram.org"

// telegramMessage is the sendMessage request body
type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Dispatcher sends rendered notification texts through a set of bot
// credentials to a single chat destination.
type Dispatcher struct {
	apiBase    string
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewDispatcher creates a dispatcher with a bounded per-send timeout
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithAPIBase(defaultAPIBase)
}

// NewDispatcherWithAPIBase creates a dispatcher against a custom API base
// URL. Tests point this at a local server.
func NewDispatcherWithAPIBase(apiBase string) *Dispatcher {
	return &Dispatcher{
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: NewRateLimiter(25, time.Second),
	}
}

// Stop releases the dispatcher's rate limiter
func (d *Dispatcher) Stop() {
	d.limiter.Stop()
}

// Dispatch sends text to chatID through every given bot. Failures are
// logged and swallowed; the caller never learns about them.
func (d *Dispatcher) Dispatch(bots []db.Bot, chatID, text string) {
	if chatID == "" || len(bots) == 0 {
		return
	}

	for _, bot := range bots {
		if err := d.send(bot.Token, chatID, text); err != nil {
			log.WithFields(log.Fields{
				"bot":     bot.Name,
				"chat_id": chatID,
			}).Warnf("telegram send failed: %v", err)
		}
	}
}

func (d *Dispatcher) send(token, chatID, text string) error {
	if token == "" {
		return fmt.Errorf("empty bot token")
	}

	if err := d.limiter.Wait(); err != nil {
		return err
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", d.apiBase, token)
	resp, err := d.httpClient.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telegram API error %d", resp.StatusCode)
	}

	return nil
}
