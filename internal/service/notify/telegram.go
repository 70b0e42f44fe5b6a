package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	phttp "GoldPulse/pkg/http"
	"GoldPulse/pkg/logger"
)

const telegramAPI = "https://api.telegram.org"

// Telegram delivers alerts to a chat through the Bot API. Sends are
// throttled to stay under the per-chat flood limit.
type Telegram struct {
	client  *phttp.Client
	baseURL string
	token   string
	chatID  string
	limiter *rate.Limiter
	log     *logger.Logger
}

// TelegramOption configures the notifier.
type TelegramOption func(*Telegram)

// WithBaseURL overrides the Bot API endpoint, for tests.
func WithBaseURL(u string) TelegramOption {
	return func(t *Telegram) { t.baseURL = u }
}

// NewTelegram creates a notifier for the given bot and chat.
func NewTelegram(token, chatID string, log *logger.Logger, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		client:  phttp.NewClient(phttp.WithTimeout(15 * time.Second)),
		baseURL: telegramAPI,
		token:   token,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		log:     log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telegram) NotifySignal(ctx context.Context, s *models.Signal) error {
	arrow := "🟢 LONG"
	if s.Direction == models.Short {
		arrow = "🔴 SHORT"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", arrow, s.Symbol, s.Timeframe)
	fmt.Fprintf(&b, "Strategy: %s\n", s.Strategy)
	fmt.Fprintf(&b, "Entry: %.2f\n", s.Entry)
	fmt.Fprintf(&b, "SL: %.2f | TP: %.2f\n", s.StopLoss, s.TakeProfit)
	fmt.Fprintf(&b, "R:R %.1f | Confidence %.0f%%", s.RiskReward, s.Confidence*100)
	if s.Notes != "" {
		fmt.Fprintf(&b, "\n%s", s.Notes)
	}
	return t.send(ctx, b.String())
}

func (t *Telegram) NotifyClose(ctx context.Context, s *models.Signal) error {
	outcome := "✅"
	if s.PnL < 0 {
		outcome = "❌"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Closed %s %s (%s)\n", outcome, s.Direction, s.Symbol, s.Timeframe)
	fmt.Fprintf(&b, "Reason: %s\n", s.CloseReason)
	fmt.Fprintf(&b, "Exit: %.2f | PnL: %+.2f", s.ExitPrice, s.PnL)
	return t.send(ctx, b.String())
}

func (t *Telegram) NotifyText(ctx context.Context, text string) error {
	return t.send(ctx, text)
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}
	err := t.client.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token),
		Body: map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Noop discards every notification. Used when Telegram is not configured.
type Noop struct{}

func (Noop) NotifySignal(context.Context, *models.Signal) error { return nil }
func (Noop) NotifyClose(context.Context, *models.Signal) error  { return nil }
func (Noop) NotifyText(context.Context, string) error           { return nil }

var (
	_ repository.Notifier = (*Telegram)(nil)
	_ repository.Notifier = Noop{}
)
