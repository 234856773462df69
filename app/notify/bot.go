package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"regwatch/app/database"
	"regwatch/app/pipeline"
)

// Bot is the Telegram transport. It delivers pipeline notifications and runs
// the registration loop: any group the bot is added to (or that messages it)
// is registered as a recipient, authorized immediately unless approval mode
// is on.
type Bot struct {
	api             *tgbotapi.BotAPI
	recipients      database.RecipientRepository
	requireApproval bool
}

var _ pipeline.Sender = (*Bot)(nil)

func NewBot(token string, recipients database.RecipientRepository, requireApproval bool) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	slog.Info("Telegram bot connected", "username", api.Self.UserName)

	return &Bot{
		api:             api,
		recipients:      recipients,
		requireApproval: requireApproval,
	}, nil
}

func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}

	return nil
}

// Run consumes the update long-poll until the context is cancelled,
// registering every group chat the bot hears from.
func (b *Bot) Run(ctx context.Context) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30

	updates := b.api.GetUpdatesChan(updateCfg)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		chat := updateChat(update)
		if chat == nil || !(chat.IsGroup() || chat.IsSuperGroup()) {
			continue
		}

		b.register(chat)
	}

	slog.Info("Telegram update loop stopped")
}

func (b *Bot) register(chat *tgbotapi.Chat) {
	created, err := b.recipients.Register(chat.ID, chat.Title, !b.requireApproval)
	if err != nil {
		slog.Error("Failed to register recipient", "chat_id", chat.ID, "error", err)
		return
	}
	if !created {
		return
	}

	slog.Info("Registered new recipient", "chat_id", chat.ID, "title", chat.Title, "authorized", !b.requireApproval)

	text := "✅ This group is now registered for regulatory updates."
	if b.requireApproval {
		text = "📝 Registration received. An operator has to approve this group before updates start."
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(chat.ID, text)); err != nil {
		slog.Warn("Failed to send registration confirmation", "chat_id", chat.ID, "error", err)
	}
}

func updateChat(update tgbotapi.Update) *tgbotapi.Chat {
	switch {
	case update.Message != nil:
		return update.Message.Chat
	case update.MyChatMember != nil:
		return &update.MyChatMember.Chat
	default:
		return nil
	}
}
