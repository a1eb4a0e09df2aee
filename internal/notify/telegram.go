package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"salon/internal/domain"
	"salon/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NewBotAPI connects to the Telegram Bot API.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// TelegramNotifier tells the salon owner about bookings.
type TelegramNotifier struct {
	sender   domain.TelegramSender
	chatIDs  []int64
	location *time.Location
	logger   *zerolog.Logger
}

func NewTelegramNotifier(sender domain.TelegramSender, chatIDs []int64, location *time.Location, logger *zerolog.Logger) *TelegramNotifier {
	if location == nil {
		location = time.Local
	}
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, location: location, logger: logger}
}

// Register subscribes the notifier to the booking lifecycle events.
func (n *TelegramNotifier) Register(bus *events.EventBus) {
	bus.SubscribeMany([]string{
		events.EventAppointmentCreated,
		events.EventAppointmentCancelled,
		events.EventAppointmentCompleted,
	}, n.Handle)
}

// Handle sends the message for event to every configured chat.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	var payload events.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text := n.format(event.Type, payload)
	if text == "" {
		return nil
	}

	var errs []error
	for _, chatID := range n.chatIDs {
		if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("event_type", event.Type).Msg("telegram send failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *TelegramNotifier) format(eventType string, p events.AppointmentEventPayload) string {
	var title string
	switch eventType {
	case events.EventAppointmentCreated:
		title = "📅 Novo agendamento"
	case events.EventAppointmentCancelled:
		title = "❌ Agendamento cancelado"
	case events.EventAppointmentCompleted:
		title = "✅ Atendimento concluído"
	default:
		return ""
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	fmt.Fprintf(&b, "Cliente: %s\n", p.Name)
	if p.Phone != "" {
		fmt.Fprintf(&b, "Telefone: %s\n", p.Phone)
	}
	fmt.Fprintf(&b, "Serviço: %s\n", p.ServiceName)
	fmt.Fprintf(&b, "Data: %s às %s\n", p.Date.In(n.location).Format("02/01/2006"), p.TimeSlot)
	if eventType == events.EventAppointmentCompleted || p.ServicePrice > 0 {
		fmt.Fprintf(&b, "Valor: %s\n", FormatBRL(p.ServicePrice))
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Observações: %s\n", p.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatBRL formats an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%.2f", amount)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := "R$ " + strings.Join(groups, ".") + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

