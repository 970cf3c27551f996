package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/logging"
	"barberbook/internal/models"
	"barberbook/internal/notify"
	"barberbook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const minPhoneDigits = 8

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.startBooking(ctx, chatID, msgWelcome)
		case "cancel":
			b.cancelBooking(ctx, chatID)
		default:
			b.sendMenu(chatID, msgUseButtons)
		}
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case btnBook:
		b.startBooking(ctx, chatID, msgWelcome)
		return
	case btnCancel:
		b.cancelBooking(ctx, chatID)
		return
	}

	d, err := b.drafts.GetDraft(ctx, draftID(chatID))
	if err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	if d.Step != models.StepClientData {
		b.sendText(chatID, msgUseButtons)
		return
	}
	b.collectClientData(ctx, msg, d)
}

// collectClientData asks for the name first, then the phone.
func (b *Bot) collectClientData(ctx context.Context, msg *tgbotapi.Message, d *models.BookingDraft) {
	chatID := msg.Chat.ID
	var patch models.BookingDraft

	if d.ClientName == "" {
		name := strings.TrimSpace(msg.Text)
		if name == btnTelegramName && msg.From != nil {
			name = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		}
		if name == "" {
			b.send(withReply(chatID, msgAskName, nameKeyboard()))
			return
		}
		patch.ClientName = name
	} else {
		phone := strings.TrimSpace(msg.Text)
		if msg.Contact != nil {
			phone = msg.Contact.PhoneNumber
		}
		if len(notify.DigitsOnly(phone)) < minPhoneDigits {
			b.send(withReply(chatID, msgBadPhone, phoneKeyboard()))
			return
		}
		patch.ClientPhone = phone
	}

	d, err := b.drafts.UpdateDraft(ctx, draftID(chatID), patch)
	if err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	if d.ClientPhone == "" {
		b.send(withReply(chatID, msgAskPhone, phoneKeyboard()))
		return
	}
	b.sendSummary(ctx, chatID, d)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Сначала отвечаем на callback, чтобы убрать "часики" в клиенте
	if _, err := b.tg.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer callback")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbService):
		b.chooseService(ctx, chatID, strings.TrimPrefix(data, cbService))
	case strings.HasPrefix(data, cbProfessional):
		b.chooseProfessional(ctx, chatID, strings.TrimPrefix(data, cbProfessional))
	case strings.HasPrefix(data, cbDate):
		b.chooseDate(ctx, chatID, strings.TrimPrefix(data, cbDate))
	case strings.HasPrefix(data, cbTime):
		b.chooseTime(ctx, chatID, strings.TrimPrefix(data, cbTime))
	case data == cbDates:
		b.sendDates(chatID, msgChooseDate)
	case data == cbConfirm:
		b.confirm(ctx, chatID)
	case data == cbCancel:
		b.cancelBooking(ctx, chatID)
	default:
		logging.FromContext(ctx, b.logger).Warn().Str("data", data).Msg("Unknown callback")
	}
}

func (b *Bot) startBooking(ctx context.Context, chatID int64, greeting string) {
	if _, err := b.drafts.StartDraft(ctx, draftID(chatID), b.cfg.BusinessID); err != nil {
		b.handleError(ctx, chatID, err)
		return
	}
	services, err := b.catalog.ListServices(ctx, b.cfg.BusinessID)
	if err != nil {
		b.handleError(ctx, chatID, err)
		return
	}
	if len(services) == 0 {
		b.sendMenu(chatID, msgNoServices)
		return
	}
	if greeting != "" {
		b.send(withReply(chatID, greeting, tgbotapi.NewRemoveKeyboard(true)))
	}
	msg := tgbotapi.NewMessage(chatID, msgChooseService)
	msg.ReplyMarkup = servicesKeyboard(services)
	b.send(msg)
}

func (b *Bot) cancelBooking(ctx context.Context, chatID int64) {
	if err := b.drafts.DeleteDraft(ctx, draftID(chatID)); err != nil {
		logging.FromContext(ctx, b.logger).Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to delete draft")
	}
	b.sendMenu(chatID, msgCancelled)
}

func (b *Bot) chooseService(ctx context.Context, chatID int64, serviceID string) {
	if _, err := b.drafts.UpdateDraft(ctx, draftID(chatID), models.BookingDraft{ServiceID: serviceID}); err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	profs, err := b.catalog.ProfessionalsForService(ctx, b.cfg.BusinessID, serviceID)
	if err != nil {
		b.handleError(ctx, chatID, err)
		return
	}
	if len(profs) == 0 {
		b.startBooking(ctx, chatID, msgNoBarbers)
		return
	}
	msg := tgbotapi.NewMessage(chatID, msgChooseBarber)
	msg.ReplyMarkup = professionalsKeyboard(profs)
	b.send(msg)
}

func (b *Bot) chooseProfessional(ctx context.Context, chatID int64, professionalID string) {
	if _, err := b.drafts.UpdateDraft(ctx, draftID(chatID), models.BookingDraft{ProfessionalID: professionalID}); err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	b.sendDates(chatID, msgChooseDate)
}

func (b *Bot) chooseDate(ctx context.Context, chatID int64, date string) {
	d, err := b.drafts.UpdateDraft(ctx, draftID(chatID), models.BookingDraft{Date: date})
	if err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	b.sendSlots(ctx, chatID, d, "")
}

func (b *Bot) chooseTime(ctx context.Context, chatID int64, startTime string) {
	d, err := b.drafts.UpdateDraft(ctx, draftID(chatID), models.BookingDraft{StartTime: startTime})
	if err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	if d.ClientName != "" && d.ClientPhone != "" {
		b.sendSummary(ctx, chatID, d)
		return
	}
	b.send(withReply(chatID, msgAskName, nameKeyboard()))
}

func (b *Bot) confirm(ctx context.Context, chatID int64) {
	id := draftID(chatID)
	appt, err := b.drafts.SubmitDraft(ctx, id)
	if err == nil {
		msg := tgbotapi.NewMessage(chatID, bookedText(appt))
		if appt.ConfirmationURL != "" {
			msg.ReplyMarkup = bookedKeyboard(appt.ConfirmationURL)
		}
		b.send(msg)
		b.sendMenu(chatID, "👍")
		logging.FromContext(ctx, b.logger).Info().
			Str("appointment_id", appt.ID).
			Int64("chat_id", chatID).
			Msg("Booking submitted from telegram")
		return
	}

	if errors.Is(err, domain.ErrSlotUnavailable) {
		d, gerr := b.drafts.GetDraft(ctx, id)
		if gerr != nil {
			b.handleDraftError(ctx, chatID, gerr)
			return
		}
		b.sendSlots(ctx, chatID, d, msgSlotTaken)
		return
	}
	b.handleDraftError(ctx, chatID, err)
}

// sendSlots lists free times for the draft's day, or offers other days.
func (b *Bot) sendSlots(ctx context.Context, chatID int64, d *models.BookingDraft, header string) {
	slots, err := b.availability.GetAvailability(ctx, service.AvailabilityRequest{
		BusinessID:     d.BusinessID,
		ProfessionalID: d.ProfessionalID,
		ServiceID:      d.ServiceID,
		Date:           d.Date,
	})
	if err != nil {
		b.handleError(ctx, chatID, err)
		return
	}
	day := notify.FormatDatePT(d.Date)
	if len(slots) == 0 {
		b.sendDates(chatID, fmt.Sprintf(msgNoSlots, day))
		return
	}
	text := fmt.Sprintf(msgChooseTime, day)
	if header != "" {
		text = header + "\n\n" + text
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = slotsKeyboard(slots)
	b.send(msg)
}

func (b *Bot) sendDates(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = datesKeyboard(b.now().In(b.loc), b.cfg.DaysAhead)
	b.send(msg)
}

func (b *Bot) sendSummary(ctx context.Context, chatID int64, d *models.BookingDraft) {
	prof, svc, err := b.catalog.Resolve(ctx, d.BusinessID, d.ProfessionalID, d.ServiceID)
	if err != nil {
		b.handleDraftError(ctx, chatID, err)
		return
	}
	b.send(withReply(chatID, "✍️", tgbotapi.NewRemoveKeyboard(true)))
	msg := tgbotapi.NewMessage(chatID, summaryText(d, prof, svc))
	msg.ReplyMarkup = confirmKeyboard()
	b.send(msg)
}

func (b *Bot) sendMenu(chatID int64, text string) {
	b.send(withReply(chatID, text, mainMenuKeyboard()))
}

// handleDraftError restarts the flow when the draft expired and otherwise
// reports the error to the client.
func (b *Bot) handleDraftError(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		b.startBooking(ctx, chatID, msgSessionExpired)
		return
	}
	b.handleError(ctx, chatID, err)
}

func (b *Bot) handleError(ctx context.Context, chatID int64, err error) {
	if !service.IsValidation(err) && !errors.Is(err, service.ErrRateLimited) {
		logging.FromContext(ctx, b.logger).Error().Err(err).Int64("chat_id", chatID).Msg("Booking bot request failed")
	}
	b.sendText(chatID, errorText(err))
}

func withReply(chatID int64, text string, markup interface{}) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	return msg
}
