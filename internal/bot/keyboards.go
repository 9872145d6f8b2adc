package bot

import (
	"strings"

	"linksummary/internal/summarizer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxMessageLength = 4096

	strategyCallbackPrefix = "strategy_"

	// See https://core.telegram.org/bots/api#markdownv2-style.
	markdownV2Special = "_*[]()~`>#+-=|{}.!\\"
)

// sendMessageWithKeyboard sends MarkdownV2 text. keyboard may be nil.
func (b *Bot) sendMessageWithKeyboard(
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	message := tgbotapi.NewMessage(chatID, b.normalizeText(chatID, text))

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	_, err := b.rateLimiter.Send(message)
	return err
}

// escapeMarkdownV2 escapes every character MarkdownV2 reserves, the
// backslash included.
func escapeMarkdownV2(text string) string {
	if !strings.ContainsAny(text, markdownV2Special) {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text) + len(text)/8)

	for _, r := range text {
		if strings.ContainsRune(markdownV2Special, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

// sendPlainReply sends text without a parse mode, split to Telegram's limit.
func (b *Bot) sendPlainReply(chatID int64, replyTo int, text string) error {
	for i, chunk := range splitMessage(b.normalizeText(chatID, text), maxMessageLength) {
		message := tgbotapi.NewMessage(chatID, chunk)
		message.DisableWebPagePreview = true
		if i == 0 {
			message.ReplyToMessageID = replyTo
		}

		if _, err := b.rateLimiter.Send(message); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bot) normalizeText(chatID int64, text string) string {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.Warn("Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	return normalizedText
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// paragraph, line and word boundaries.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string

	runes := []rune(text)
	for len(runes) > limit {
		cut := lastBoundary(runes[:limit])

		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}

	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}

	return chunks
}

func lastBoundary(runes []rune) int {
	window := string(runes)

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return len([]rune(window[:idx]))
		}
	}

	return len(runes)
}

func getStrategyKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🗺 Map-reduce",
				strategyCallbackPrefix+summarizer.StrategyMapReduce),
			tgbotapi.NewInlineKeyboardButtonData("📦 Stuff",
				strategyCallbackPrefix+summarizer.StrategyStuff),
		},
	}
}
