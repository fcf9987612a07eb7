package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink sends notifications through a Telegram bot. Device tokens are
// chat ids.
type TelegramSink struct {
	bot            *tgbotapi.BotAPI
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegramSink creates a sink for botToken.
func NewTelegramSink(botToken string, maxRetries int, retryDelayBase time.Duration) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramSink(bot, maxRetries, retryDelayBase), nil
}

// NewTelegramSinkWithEndpoint targets a custom Bot API endpoint of the form
// "https://host/bot%s/%s".
func NewTelegramSinkWithEndpoint(botToken, endpoint string, maxRetries int, retryDelayBase time.Duration) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramSink(bot, maxRetries, retryDelayBase), nil
}

func newTelegramSink(bot *tgbotapi.BotAPI, maxRetries int, retryDelayBase time.Duration) *TelegramSink {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &TelegramSink{bot: bot, maxRetries: maxRetries, retryDelayBase: retryDelayBase}
}

func (t *TelegramSink) Name() string { return "telegram" }

// SendToDevices sends msg to every chat id in tokens.
func (t *TelegramSink) SendToDevices(ctx context.Context, tokens []string, msg Message) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(msg.Title), html.EscapeString(msg.Body))
	var errs []error
	for _, token := range tokens {
		chatID, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid chat id %q: %w", token, err))
			continue
		}
		if err := t.send(ctx, chatID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// send delivers one HTML message with linear-backoff retry.
func (t *TelegramSink) send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram send to %d failed after %d tries: %w", chatID, t.maxRetries, lastErr)
}
