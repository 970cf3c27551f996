package bot

import (
	"fmt"
	"time"

	"barberbook/internal/models"
	"barberbook/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbService      = "svc:"
	cbProfessional = "prof:"
	cbDate         = "date:"
	cbTime         = "time:"
	cbDates        = "dates"
	cbConfirm      = "confirm"
	cbCancel       = "cancel"

	slotsPerRow = 4
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBook)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func nameKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnTelegramName)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func phoneKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(btnSharePhone)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func servicesKeyboard(services []*models.Service) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services))
	for _, s := range services {
		label := fmt.Sprintf("%s · %d min", s.Name, s.DurationMinutes)
		if s.Price > 0 {
			label += fmt.Sprintf(" · R$ %.2f", s.Price)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbService+s.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func professionalsKeyboard(profs []*models.Professional) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(profs))
	for _, p := range profs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Name, cbProfessional+p.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// datesKeyboard lists days starting with today, one per row.
func datesKeyboard(today time.Time, days int) tgbotapi.InlineKeyboardMarkup {
	if days <= 0 {
		days = 7
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i).Format("2006-01-02")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(notify.FormatDatePT(date), cbDate+date),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func slotsKeyboard(slots []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, slot := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot, cbTime+slot))
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnOtherDay, cbDates),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnConfirm, cbConfirm),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancel),
		),
	)
}

func bookedKeyboard(url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnWhatsAppLabel, url)),
	)
}
