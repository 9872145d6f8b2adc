package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"linksummary/internal/pipeline"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const typingInterval = 4 * time.Second

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	if message.IsCommand() {
		switch message.Command() {
		case "start", "help":
			return b.handleStartCommand(chatID)
		case "key":
			return b.handleKeyCommand(ctx, message)
		case "forget":
			return b.handleForgetCommand(chatID, userID)
		case "strategy":
			return b.handleStrategyCommand(chatID, userID, message.CommandArguments())
		default:
			return b.handleStartCommand(chatID)
		}
	}

	return b.handleLink(ctx, message)
}

func (b *Bot) handleLink(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}

	rawURL, ok := pipeline.ExtractURL(text)
	if !ok {
		return b.sendMessageWithKeyboard(chatID,
			"✖️ Send me a link to a YouTube video or a web page\\.", nil)
	}

	credential := b.credentialFor(userID)
	if credential == "" {
		return b.sendMessageWithKeyboard(chatID,
			"🔑 Set your API key first with /key \\<key\\>\\.", nil)
	}

	res := b.summarizeWithTyping(ctx, chatID, pipeline.Request{
		URL:        rawURL,
		Credential: credential,
		Strategy:   b.strategyFor(userID),
	})
	if !res.OK() {
		return b.sendMessageWithKeyboard(chatID, "❌ "+escapeMarkdownV2(res.Message()), nil)
	}

	return b.sendPlainReply(chatID, message.MessageID, res.Summary)
}

// summarizeWithTyping runs the pipeline and repeats the typing action until
// the run returns. Telegram clears the action after about five seconds.
func (b *Bot) summarizeWithTyping(
	ctx context.Context,
	chatID int64,
	req pipeline.Request,
) pipeline.Result {
	start := time.Now()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Go(func() {
		t := time.NewTicker(typingInterval)
		defer t.Stop()

		for {
			b.sendTyping(ctx, chatID)

			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	})

	res := b.runner.Run(ctx, req)
	close(done)
	wg.Wait()

	if !res.OK() {
		b.log.InfoContext(ctx, "Summary failed for chat",
			"chatID", chatID,
			"kind", res.Kind().String(),
			"strategy", req.Strategy,
			"elapsedSeconds", time.Since(start).Seconds())

		return res
	}

	b.log.InfoContext(ctx, "Summary is ready for chat",
		"chatID", chatID,
		"strategy", req.Strategy,
		"summaryLength", len(res.Summary),
		"elapsedSeconds", time.Since(start).Seconds())

	return res
}

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	if _, err := b.rateLimiter.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.log.WarnContext(ctx, "Failed to send typing action",
			"error", err,
			"chatID", chatID)
	}
}
