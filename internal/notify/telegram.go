package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier posts appointment events to the shop's staff chats.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

// NewBotAPI connects to Telegram with token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Subscribe attaches the notifier to the events staff care about.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventAppointmentCreated, n.Handle)
	bus.Subscribe(events.EventAppointmentCancelled, n.Handle)
}

// Handle formats the event and sends it to every configured chat.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	var p events.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decode appointment event: %w", err)
	}

	text := FormatStaffMessage(event.Type, p)
	var failed []string
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send telegram notification")
			failed = append(failed, fmt.Sprint(chatID))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("telegram send failed for chats %s", strings.Join(failed, ","))
	}
	return nil
}

// FormatStaffMessage renders an event for staff chats as Telegram HTML.
func FormatStaffMessage(eventType string, p events.AppointmentEventPayload) string {
	title := "📋 Agendamento"
	switch eventType {
	case events.EventAppointmentCreated:
		title = "🆕 Novo agendamento"
	case events.EventAppointmentCancelled:
		title = "❌ Agendamento cancelado"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)
	fmt.Fprintf(&b, "👤 %s (%s)\n", escapeHTML(p.ClientName), escapeHTML(p.ClientPhone))
	fmt.Fprintf(&b, "✂️ %s\n", escapeHTML(firstNonEmpty(p.ServiceName, p.ServiceID)))
	fmt.Fprintf(&b, "💈 %s\n", escapeHTML(firstNonEmpty(p.ProfessionalName, p.ProfessionalID)))
	fmt.Fprintf(&b, "📅 %s às %s (%d min)", FormatDatePT(p.Date), p.StartTime, p.DurationMinutes)
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
