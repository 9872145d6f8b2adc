package bot

import (
	"context"
	"fmt"
	"strings"

	"linksummary/internal/summarizer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const welcomeText = `🤖 *Welcome to Link Summary\!*

Send me a link to a YouTube video or a web page and I will reply with a summary\.

– Set your model API key with /key \<key\>, the message is deleted right away
– Remove it with /forget
– Pick how long content is handled with /strategy
– Show this message again with /help

Keys are kept in memory only and are lost when the bot restarts\.`

const strategyText = `*⚙️ Strategy*

Current strategy is %s\.

*map\-reduce* summarizes every part separately and then combines the results\.
*stuff* sends everything in a single request, which is faster for short content\.`

func (b *Bot) handleStartCommand(chatID int64) error {
	return b.sendMessageWithKeyboard(chatID, welcomeText, nil)
}

func (b *Bot) handleKeyCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	key := strings.TrimSpace(message.CommandArguments())

	deleted := true
	if _, err := b.rateLimiter.Request(tgbotapi.NewDeleteMessage(chatID, message.MessageID)); err != nil {
		deleted = false
		b.log.WarnContext(ctx, "Failed to delete message with key",
			"error", err,
			"chatID", chatID,
			"messageID", message.MessageID)
	}

	if key == "" {
		return b.sendMessageWithKeyboard(chatID, "✖️ Usage: /key \\<your API key\\>", nil)
	}

	b.sessions.setCredential(message.From.ID, key)

	text := "🔑 Key is saved\\. Now send me a link\\."
	if !deleted {
		text += "\n\n⚠️ I could not delete your message, please delete it yourself\\."
	}

	return b.sendMessageWithKeyboard(chatID, text, nil)
}

func (b *Bot) handleForgetCommand(chatID int64, userID int64) error {
	if !b.sessions.forget(userID) {
		return b.sendMessageWithKeyboard(chatID, "✖️ There is no saved key\\.", nil)
	}

	return b.sendMessageWithKeyboard(chatID, "✅ Key is removed\\.", nil)
}

func (b *Bot) handleStrategyCommand(chatID int64, userID int64, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		return b.sendMessageWithKeyboard(chatID,
			fmt.Sprintf(strategyText, escapeMarkdownV2(b.strategyFor(userID))),
			b.strategyKeypad)
	}

	name, err := b.setStrategy(userID, args)
	if err != nil {
		return b.sendMessageWithKeyboard(chatID,
			"✖️ Unknown strategy\\. Choose one below:", b.strategyKeypad)
	}

	return b.sendMessageWithKeyboard(chatID,
		fmt.Sprintf("✅ Strategy is set to %s\\.", escapeMarkdownV2(name)), nil)
}

func (b *Bot) setStrategy(userID int64, name string) (string, error) {
	strategy, err := summarizer.StrategyByName(name, 1)
	if err != nil {
		return "", err
	}

	b.sessions.setStrategy(userID, strategy.Name())

	return strategy.Name(), nil
}

func (b *Bot) strategyFor(userID int64) string {
	if strategy := b.sessions.getStrategy(userID); strategy != "" {
		return strategy
	}
	if b.opts.DefaultStrategy != "" {
		return b.opts.DefaultStrategy
	}

	return summarizer.StrategyMapReduce
}

func (b *Bot) credentialFor(userID int64) string {
	if credential := b.sessions.getCredential(userID); credential != "" {
		return credential
	}

	return b.opts.DefaultCredential
}
