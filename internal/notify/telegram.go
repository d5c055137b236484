// Package notify delivers booking lifecycle messages to a Telegram channel
// watched by the organization staff.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"assetbook/internal/models"
)

var retryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}

// TelegramNotifier sends booking events to a single chat. Sends are rate
// limited to stay under the Telegram API ceiling and retried on failure.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewTelegramNotifier connects the bot. debug enables API call logging.
func NewTelegramNotifier(token string, chatID int64, debug bool, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier connected")
	return &TelegramNotifier{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		logger:  logger,
	}, nil
}

// BookingCreated announces a new booking.
func (n *TelegramNotifier) BookingCreated(ctx context.Context, booking *models.Booking, asset *models.Asset) {
	msg := fmt.Sprintf("New booking: %s on %s", asset.Name, models.FormatDate(booking.Date))
	if booking.TimeSlot != nil {
		msg += fmt.Sprintf(" at %s", booking.TimeSlot)
	}
	if booking.ClientName != "" {
		msg += fmt.Sprintf(" for %s", booking.ClientName)
	}
	n.send(ctx, msg)
}

// BookingCancelled announces a cancellation.
func (n *TelegramNotifier) BookingCancelled(ctx context.Context, booking *models.Booking) {
	msg := fmt.Sprintf("Booking cancelled: asset %s on %s", booking.AssetID, models.FormatDate(booking.Date))
	if booking.TimeSlot != nil {
		msg += fmt.Sprintf(" at %s", booking.TimeSlot)
	}
	if booking.ClientName != "" {
		msg += fmt.Sprintf(" for %s", booking.ClientName)
	}
	n.send(ctx, msg)
}

// BookingDeleted announces a removal.
func (n *TelegramNotifier) BookingDeleted(ctx context.Context, booking *models.Booking) {
	msg := fmt.Sprintf("Booking removed: asset %s on %s", booking.AssetID, models.FormatDate(booking.Date))
	if booking.TimeSlot != nil {
		msg += fmt.Sprintf(" at %s", booking.TimeSlot)
	}
	n.send(ctx, msg)
}

// SendDigest delivers the morning occupancy digest for one organization.
func (n *TelegramNotifier) SendDigest(ctx context.Context, orgName string, bookings []models.Booking) {
	if len(bookings) == 0 {
		return
	}
	msg := fmt.Sprintf("%s: %d booking(s) today", orgName, len(bookings))
	n.send(ctx, msg)
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelays[attempt-1]):
			}
		}

		if err := n.limiter.Wait(ctx); err != nil {
			return
		}
		_, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text))
		if err == nil {
			return
		}
		n.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("telegram send failed")
	}
	n.logger.Error().Str("text", text).Msg("telegram message dropped after retries")
}
