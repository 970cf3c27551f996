package bot

import (
	"errors"
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/notify"
	"barberbook/internal/service"
)

const (
	btnBook          = "✂️ Agendar horário"
	btnCancel        = "❌ Cancelar"
	btnTelegramName  = "👤 Usar meu nome do Telegram"
	btnSharePhone    = "📱 Enviar meu telefone"
	btnConfirm       = "✅ Confirmar"
	btnOtherDay      = "⬅️ Outro dia"
	btnStartOver     = "🔄 Recomeçar"
	btnWhatsAppLabel = "💬 Confirmar pelo WhatsApp"

	msgWelcome         = "Olá! Vamos agendar seu horário?"
	msgChooseService   = "Escolha o serviço:"
	msgChooseBarber    = "Escolha o profissional:"
	msgChooseDate      = "Escolha o dia:"
	msgChooseTime      = "Horários livres em %s:"
	msgNoSlots         = "Não há horários livres em %s. Escolha outro dia:"
	msgNoServices      = "No momento não há serviços disponíveis."
	msgNoBarbers       = "Nenhum profissional atende esse serviço no momento."
	msgAskName         = "Como podemos te chamar?"
	msgAskPhone        = "Informe seu telefone com DDD:"
	msgBadPhone        = "⚠️ Telefone inválido. Envie com DDD, por exemplo 11 98888-7777."
	msgUseButtons      = "Use os botões acima para continuar, ou envie /start para recomeçar."
	msgSessionExpired  = "Sua sessão expirou. Vamos começar de novo."
	msgCancelled       = "Agendamento cancelado. Quando quiser, é só chamar!"
	msgSlotTaken       = "😕 Esse horário acabou de ser reservado por outra pessoa. Escolha outro:"
	msgSlowDown        = "⚠️ Você está enviando mensagens muito rápido. Aguarde um pouco."
	msgGenericError    = "❌ Não foi possível concluir agora. Tente novamente em instantes."
	msgTooManyAttempts = "⚠️ Muitas tentativas de agendamento. Tente novamente mais tarde."
)

func errorText(err error) string {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return "⚠️ " + validationText(ve)
	case errors.Is(err, domain.ErrSlotUnavailable):
		return msgSlotTaken
	case errors.Is(err, service.ErrRateLimited):
		return msgTooManyAttempts
	default:
		return msgGenericError
	}
}

func validationText(ve *service.ValidationError) string {
	switch ve.Field {
	case "date":
		return "Essa data não está disponível para agendamento."
	case "start_time":
		return "Esse horário não está disponível."
	case "client_phone":
		return "Telefone inválido."
	case "professional_id":
		return "Esse profissional não atende esse serviço."
	default:
		return ve.Message
	}
}

func summaryText(d *models.BookingDraft, prof *models.Professional, svc *models.Service) string {
	var b strings.Builder
	b.WriteString("📋 Confira seu agendamento:\n\n")
	fmt.Fprintf(&b, "✂️ %s (%d min)\n", svc.Name, svc.DurationMinutes)
	fmt.Fprintf(&b, "💈 %s\n", prof.Name)
	fmt.Fprintf(&b, "📅 %s às %s\n", notify.FormatDatePT(d.Date), d.StartTime)
	fmt.Fprintf(&b, "👤 %s\n", d.ClientName)
	fmt.Fprintf(&b, "📱 %s", d.ClientPhone)
	return b.String()
}

func bookedText(appt *models.Appointment) string {
	var b strings.Builder
	b.WriteString("✅ Pedido de agendamento enviado!\n\n")
	fmt.Fprintf(&b, "📅 %s às %s\n", notify.FormatDatePT(appt.Date), appt.StartTime)
	if appt.ServiceName != "" {
		fmt.Fprintf(&b, "✂️ %s com %s\n", appt.ServiceName, appt.ProfessionalName)
	}
	b.WriteString("\nA barbearia vai confirmar seu horário.")
	return b.String()
}
