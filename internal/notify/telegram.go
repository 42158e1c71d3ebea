package notify

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers a rendered message to a chat address. Implementations
// must not let failures escape: the result is a boolean plus a logged
// diagnostic.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) bool
}

// TelegramGateway sends notifications through the Bot API. The client
// is initialized lazily so a missing token degrades sends without
// taking the rest of the system down.
type TelegramGateway struct {
	token string
	log   *slog.Logger

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

func NewTelegramGateway(token string, log *slog.Logger) *TelegramGateway {
	return &TelegramGateway{token: token, log: log}
}

// Send pushes one message to the chat. All failures, including the
// missing-token configuration error, are logged and reported as false.
func (g *TelegramGateway) Send(ctx context.Context, chatID int64, msg Message) bool {
	api, ok := g.client()
	if !ok {
		return false
	}

	if err := ctx.Err(); err != nil {
		g.log.Error("telegram send cancelled", "chat_id", chatID, "error", err)
		return false
	}

	out := tgbotapi.NewMessage(chatID, msg.Text)
	out.ParseMode = tgbotapi.ModeHTML
	if msg.Button != nil {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(msg.Button.Label, msg.Button.Data),
			),
		)
	}

	if _, err := api.Send(out); err != nil {
		g.log.Error("telegram send failed", "chat_id", chatID, "error", err)
		return false
	}

	g.log.Info("telegram notification sent", "chat_id", chatID)
	return true
}

func (g *TelegramGateway) client() (*tgbotapi.BotAPI, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.api != nil {
		return g.api, true
	}
	if g.token == "" {
		g.log.Error("telegram token not configured")
		return nil, false
	}

	api, err := tgbotapi.NewBotAPI(g.token)
	if err != nil {
		g.log.Error("telegram client init failed", "error", err)
		return nil, false
	}
	g.api = api
	return api, true
}
