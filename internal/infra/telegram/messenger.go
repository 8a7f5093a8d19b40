package telegram

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/infra/metrics"
)

var _ adapter.Messenger = (*Messenger)(nil)

// captionLimit is the Bot API limit for photo captions, in characters.
const captionLimit = 1024

// Messenger sends Bot API messages and reports success as a bool. It never
// retries; the reconciler's next run does.
type Messenger struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewMessenger builds the client without calling getMe, so startup does not
// depend on Telegram being reachable.
func NewMessenger(cfg config.BotConfig, logger *zerolog.Logger) (*Messenger, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot := &tgbotapi.BotAPI{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot.SetAPIEndpoint(endpoint)

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Messenger{
		bot:     bot,
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.With().Str("component", "Messenger").Logger(),
	}, nil
}

func (m *Messenger) SendMessage(ctx context.Context, chatID int64, text string) bool {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return m.send(ctx, "sendMessage", chatID, msg)
}

// SendPhoto uploads the file at photoPath with caption. Captions over the Bot
// API limit are sent as a follow-up text message.
func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, caption, photoPath string) bool {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(photoPath))
	if len([]rune(caption)) <= captionLimit {
		photo.Caption = caption
		return m.send(ctx, "sendPhoto", chatID, photo)
	}
	if !m.send(ctx, "sendPhoto", chatID, photo) {
		return false
	}
	return m.SendMessage(ctx, chatID, caption)
}

func (m *Messenger) send(ctx context.Context, method string, chatID int64, c tgbotapi.Chattable) bool {
	if err := m.limiter.Wait(ctx); err != nil {
		m.log.Warn().Err(err).Str("method", method).Int64("chat_id", chatID).Msg("send cancelled")
		metrics.IncTelegramMessage(method, false)
		return false
	}
	if _, err := m.bot.Send(c); err != nil {
		m.log.Error().Err(err).Str("method", method).Int64("chat_id", chatID).Msg("telegram send failed")
		metrics.IncTelegramMessage(method, false)
		return false
	}
	m.log.Debug().Str("method", method).Int64("chat_id", chatID).Msg("telegram message sent")
	metrics.IncTelegramMessage(method, true)
	return true
}
