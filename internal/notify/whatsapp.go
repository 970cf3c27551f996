// Package notify sends appointment notifications to staff and builds the
// client's WhatsApp confirmation link.
package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"barberbook/internal/models"
)

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatDatePT renders "2024-06-03" as "03 de junho". Unparseable input is returned as is.
func FormatDatePT(date string) string {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%02d de %s", d.Day(), ptMonths[d.Month()-1])
}

// ConfirmationMessage is the text the client sends to the shop to confirm.
func ConfirmationMessage(appt *models.Appointment) string {
	var b strings.Builder
	b.WriteString("Olá! Gostaria de confirmar meu agendamento:\n\n")
	fmt.Fprintf(&b, "👤 Nome: %s\n", appt.ClientName)
	fmt.Fprintf(&b, "📱 Telefone: %s\n", appt.ClientPhone)
	fmt.Fprintf(&b, "✂️ Serviço: %s\n", appt.ServiceName)
	fmt.Fprintf(&b, "💈 Barbeiro: %s\n", appt.ProfessionalName)
	fmt.Fprintf(&b, "📅 Data: %s\n", FormatDatePT(appt.Date))
	fmt.Fprintf(&b, "🕐 Horário: %s\n\n", appt.StartTime)
	b.WriteString("Aguardo confirmação!")
	return b.String()
}

// DigitsOnly strips everything but 0-9 from a phone number.
func DigitsOnly(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// ConfirmationURL builds a wa.me style link that opens a chat with the shop
// prefilled with ConfirmationMessage. Empty when the shop has no number.
func ConfirmationURL(baseURL, shopNumber string, appt *models.Appointment) string {
	number := DigitsOnly(shopNumber)
	if number == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(ConfirmationMessage(appt)), "+", "%20")
	return fmt.Sprintf("%s/%s?text=%s", strings.TrimRight(baseURL, "/"), number, text)
}
