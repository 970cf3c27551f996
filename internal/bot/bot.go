// Package bot is the client-facing Telegram front-end: it walks a client
// through service, professional, date and time selection on top of the
// draft service and submits the booking.
package bot

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/domain"
	"barberbook/internal/metrics"
	"barberbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	StopReceivingUpdates()
}

type Bot struct {
	tg           TelegramAPI
	cfg          config.BotConfig
	catalog      *service.CatalogService
	availability *service.AvailabilityService
	drafts       *service.DraftService
	limiter      domain.DraftRepository
	loc          *time.Location
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBot(
	tg TelegramAPI,
	cfg config.BotConfig,
	loc *time.Location,
	catalog *service.CatalogService,
	availability *service.AvailabilityService,
	drafts *service.DraftService,
	limiter domain.DraftRepository,
	logger *zerolog.Logger,
) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		tg:           tg,
		cfg:          cfg,
		catalog:      catalog,
		availability: availability,
		drafts:       drafts,
		limiter:      limiter,
		loc:          loc,
		now:          time.Now,
		logger:       logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("business_id", b.cfg.BusinessID).Msg("Booking bot started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.tg.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	kind := "other"
	defer func() { metrics.ObserveBotUpdate(kind, time.Since(start)) }()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var userID int64
		switch {
		case update.Message != nil && update.Message.From != nil:
			userID = update.Message.From.ID
			kind = "message"
		case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
			userID = update.CallbackQuery.From.ID
			kind = "callback"
		}
		if userID == 0 {
			return
		}

		if !b.allow(updateCtx, userID) {
			kind = "rate_limited"
			if update.Message != nil {
				b.sendText(update.Message.Chat.ID, msgSlowDown)
			}
			return
		}

		if update.CallbackQuery != nil {
			b.handleCallback(updateCtx, update.CallbackQuery)
			return
		}
		b.handleMessage(updateCtx, update.Message)
	})
}

// allow fails open: a broken limiter must not lock clients out.
func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil || b.cfg.RateLimitMessages <= 0 {
		return true
	}
	window := time.Duration(b.cfg.RateLimitWindow) * time.Second
	ok, err := b.limiter.CheckRateLimit(ctx, fmt.Sprintf("bot:%d", userID), b.cfg.RateLimitMessages, window)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		return true
	}
	if !ok {
		b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
	}
	return ok
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.tg.Send(c); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send telegram message")
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func draftID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}
