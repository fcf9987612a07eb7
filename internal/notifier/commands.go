package notifier

import (
	"context"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// CommandHandler answers a bot command with plain text. An empty reply sends
// nothing.
type CommandHandler func(ctx context.Context, command, args string) string

// Listen polls the bot for commands until ctx is cancelled, replying in the
// chat each command came from.
func (t *TelegramSink) Listen(ctx context.Context, handler CommandHandler, log zerolog.Logger) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			log.Info().Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			cmd := update.Message.Command()
			log.Info().Str("command", cmd).Int64("chat", update.Message.Chat.ID).Msg("bot command")
			reply := handler(ctx, cmd, update.Message.CommandArguments())
			if reply == "" {
				continue
			}
			if err := t.send(ctx, update.Message.Chat.ID, "<pre>"+html.EscapeString(reply)+"</pre>"); err != nil {
				log.Warn().Err(err).Str("command", cmd).Msg("reply failed")
			}
		}
	}
}
