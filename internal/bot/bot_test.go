package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/repository"
	"barberbook/internal/service"
	"barberbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shop   = "shop-1"
	barber = "barber-1"
	cut    = "cut"
	chat   = int64(4242)
)

var bookingDate = time.Now().UTC().AddDate(0, 0, 2).Format(models.DateLayout)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	answered []string
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered = append(f.answered, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTelegram) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeTelegram) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

// buttons returns the callback data (or URL) of every inline button.
func buttons(t *testing.T, m tgbotapi.MessageConfig) []string {
	t.Helper()
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "message %q has no inline keyboard", m.Text)
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			switch {
			case b.CallbackData != nil:
				out = append(out, *b.CallbackData)
			case b.URL != nil:
				out = append(out, *b.URL)
			}
		}
	}
	return out
}

type fixture struct {
	bot     *Bot
	tg      *fakeTelegram
	booking *service.BookingService
	drafts  *service.DraftService
}

func newFixture(t *testing.T, cfg config.BotConfig) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bot.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	hours := models.WorkingHours{}
	for _, day := range models.Weekdays {
		hours[day] = &models.DayHours{Start: "09:00", End: "12:00"}
	}
	require.NoError(t, db.UpsertBusiness(ctx, &models.Business{ID: shop, Name: "Navalha", WhatsAppNumber: "5511999990000"}))
	require.NoError(t, db.UpsertService(ctx, &models.Service{ID: cut, BusinessID: shop, Name: "Corte", Price: 40, DurationMinutes: 30, IsActive: true}))
	require.NoError(t, db.UpsertProfessional(ctx, &models.Professional{
		ID: barber, BusinessID: shop, Name: "Joao", WorkingHours: hours, ServiceIDs: []string{cut}, IsActive: true,
	}))

	opts := service.Options{
		StepMinutes:      30,
		MaxAdvanceDays:   30,
		Location:         time.UTC,
		ReadRetry:        worker.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond},
		OfferAllUnmapped: true,
		ClientRateLimit:  100,
		ClientRateWindow: 60,
		WhatsAppBaseURL:  "https://wa.me",
	}
	repo := repository.NewMemoryDraftRepository(time.Hour)
	catalog := service.NewCatalogService(db, opts, &logger)
	booking := service.NewBookingService(db, catalog, nil, repo, nil, nil, opts, &logger)
	drafts := service.NewDraftService(repo, booking, &logger)
	availability := service.NewAvailabilityService(db, catalog, nil, opts, &logger)

	if cfg.BusinessID == "" {
		cfg.BusinessID = shop
	}
	tg := newFakeTelegram()
	return &fixture{
		bot:     NewBot(tg, cfg, time.UTC, catalog, availability, drafts, repo, &logger),
		tg:      tg,
		booking: booking,
		drafts:  drafts,
	}
}

func command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: chat, FirstName: "Ana", LastName: "Souza"},
		Chat:     &tgbotapi.Chat{ID: chat},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func message(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: chat, FirstName: "Ana", LastName: "Souza"},
		Chat: &tgbotapi.Chat{ID: chat},
		Text: text,
	}}
}

func contact(phone string) tgbotapi.Update {
	u := message("")
	u.Message.Contact = &tgbotapi.Contact{PhoneNumber: phone, FirstName: "Ana"}
	return u
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: chat},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chat}},
		Data:    data,
	}}
}

// walkToTime drives the flow up to the slot list for bookingDate.
func (f *fixture) walkToTime(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.bot.processUpdate(ctx, command("/start"))
	assert.Equal(t, []string{"svc:" + cut}, buttons(t, f.tg.last(t)))

	f.bot.processUpdate(ctx, callback("svc:"+cut))
	assert.Equal(t, []string{"prof:" + barber}, buttons(t, f.tg.last(t)))

	f.bot.processUpdate(ctx, callback("prof:"+barber))
	dates := buttons(t, f.tg.last(t))
	require.Len(t, dates, 7)
	assert.Equal(t, "date:"+time.Now().UTC().Format(models.DateLayout), dates[0])
	assert.Contains(t, dates, "date:"+bookingDate)

	f.bot.processUpdate(ctx, callback("date:"+bookingDate))
}

func TestBookingConversation(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7})
	ctx := context.Background()
	f.walkToTime(t)

	slots := buttons(t, f.tg.last(t))
	assert.Equal(t, []string{
		"time:09:00", "time:09:30", "time:10:00", "time:10:30",
		"time:11:00", "time:11:30", cbDates,
	}, slots)

	f.bot.processUpdate(ctx, callback("time:10:00"))
	assert.Equal(t, msgAskName, f.tg.last(t).Text)

	f.bot.processUpdate(ctx, message(btnTelegramName))
	assert.Equal(t, msgAskPhone, f.tg.last(t).Text)

	f.bot.processUpdate(ctx, message("123"))
	assert.Equal(t, msgBadPhone, f.tg.last(t).Text)

	f.bot.processUpdate(ctx, contact("+55 11 98888-7777"))
	summary := f.tg.last(t)
	assert.Contains(t, summary.Text, "Corte")
	assert.Contains(t, summary.Text, "Joao")
	assert.Contains(t, summary.Text, "10:00")
	assert.Contains(t, summary.Text, "Ana Souza")
	assert.Equal(t, []string{cbConfirm, cbCancel}, buttons(t, summary))

	f.bot.processUpdate(ctx, callback(cbConfirm))

	appts, err := f.booking.List(ctx, models.AppointmentFilter{BusinessID: shop})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "10:00", appts[0].StartTime)
	assert.Equal(t, "Ana Souza", appts[0].ClientName)
	assert.Equal(t, models.StatusPending, appts[0].Status)

	texts := f.tg.texts()
	var booked tgbotapi.MessageConfig
	for _, m := range f.tg.sent {
		if strings.HasPrefix(m.Text, "✅") {
			booked = m
		}
	}
	require.NotEmpty(t, booked.Text, texts)
	urls := buttons(t, booked)
	require.Len(t, urls, 1)
	assert.True(t, strings.HasPrefix(urls[0], "https://wa.me/5511999990000"), urls[0])

	_, err = f.drafts.GetDraft(ctx, draftID(chat))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.tg.mu.Lock()
	assert.NotEmpty(t, f.tg.answered)
	f.tg.mu.Unlock()
}

func TestSlotTakenWhileConfirming(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7})
	ctx := context.Background()
	f.walkToTime(t)

	f.bot.processUpdate(ctx, callback("time:09:00"))
	f.bot.processUpdate(ctx, message("Bruno"))
	f.bot.processUpdate(ctx, message("11 97777-6666"))
	assert.Equal(t, []string{cbConfirm, cbCancel}, buttons(t, f.tg.last(t)))

	_, err := f.booking.SubmitBooking(ctx, service.BookingRequest{
		BusinessID:     shop,
		ProfessionalID: barber,
		ServiceID:      cut,
		Date:           bookingDate,
		StartTime:      "09:00",
		ClientName:     "Carla",
		ClientPhone:    "11955554444",
	})
	require.NoError(t, err)

	f.bot.processUpdate(ctx, callback(cbConfirm))
	last := f.tg.last(t)
	assert.True(t, strings.HasPrefix(last.Text, msgSlotTaken), last.Text)
	slots := buttons(t, last)
	assert.NotContains(t, slots, "time:09:00")
	assert.Contains(t, slots, "time:09:30")

	d, err := f.drafts.GetDraft(ctx, draftID(chat))
	require.NoError(t, err)
	assert.Empty(t, d.StartTime)
	assert.Equal(t, "Bruno", d.ClientName)

	// name and phone are kept, so picking another time goes straight to the summary
	f.bot.processUpdate(ctx, callback("time:09:30"))
	assert.Equal(t, []string{cbConfirm, cbCancel}, buttons(t, f.tg.last(t)))
}

func TestDayWithoutSlotsOffersOtherDates(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 3})
	ctx := context.Background()
	f.bot.processUpdate(ctx, command("/start"))
	f.bot.processUpdate(ctx, callback("svc:"+cut))
	f.bot.processUpdate(ctx, callback("prof:"+barber))

	for _, start := range []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"} {
		_, err := f.booking.SubmitBooking(ctx, service.BookingRequest{
			BusinessID: shop, ProfessionalID: barber, ServiceID: cut,
			Date: bookingDate, StartTime: start, ClientName: "X", ClientPhone: "119" + strings.ReplaceAll(start, ":", "") + "00",
		})
		require.NoError(t, err)
	}

	f.bot.processUpdate(ctx, callback("date:"+bookingDate))
	last := f.tg.last(t)
	assert.Contains(t, last.Text, "Não há horários livres")
	assert.Len(t, buttons(t, last), 3)
}

func TestExpiredDraftRestartsFlow(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7})
	ctx := context.Background()

	f.bot.processUpdate(ctx, callback("prof:"+barber))
	texts := f.tg.texts()
	assert.Contains(t, texts, msgSessionExpired)
	assert.Equal(t, []string{"svc:" + cut}, buttons(t, f.tg.last(t)))

	d, err := f.drafts.GetDraft(ctx, draftID(chat))
	require.NoError(t, err)
	assert.Equal(t, models.StepSelectService, d.Step)
}

func TestCancelCommandDropsDraft(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7})
	ctx := context.Background()

	f.bot.processUpdate(ctx, command("/start"))
	f.bot.processUpdate(ctx, command("/cancel"))
	assert.Equal(t, msgCancelled, f.tg.last(t).Text)

	_, err := f.drafts.GetDraft(ctx, draftID(chat))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTextOutsideClientDataStep(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7})
	ctx := context.Background()

	f.bot.processUpdate(ctx, command("/start"))
	f.bot.processUpdate(ctx, message("oi"))
	assert.Equal(t, msgUseButtons, f.tg.last(t).Text)
}

func TestRateLimitedUser(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7, RateLimitMessages: 1, RateLimitWindow: 60})
	ctx := context.Background()

	f.bot.processUpdate(ctx, command("/start"))
	f.bot.processUpdate(ctx, message("oi"))
	assert.Equal(t, msgSlowDown, f.tg.last(t).Text)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, config.BotConfig{DaysAhead: 7})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.bot.Start(ctx)
		close(done)
	}()

	f.tg.updates <- command("/start")
	require.Eventually(t, func() bool { return len(f.tg.texts()) > 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	f.tg.mu.Lock()
	assert.True(t, f.tg.stopped)
	f.tg.mu.Unlock()
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, msgSlotTaken, errorText(domain.ErrSlotUnavailable))
	assert.Equal(t, msgTooManyAttempts, errorText(service.ErrRateLimited))
	assert.Equal(t, msgGenericError, errorText(assert.AnError))
	assert.Contains(t, errorText(&service.ValidationError{Field: "date", Message: "x"}), "data")
}
