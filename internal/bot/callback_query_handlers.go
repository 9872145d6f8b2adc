package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(_ context.Context, callback *tgbotapi.CallbackQuery) error {
	data := strings.TrimSpace(callback.Data)

	if name, ok := strings.CutPrefix(data, strategyCallbackPrefix); ok {
		return b.handleStrategyQuery(name, callback)
	}

	return b.withEmptyCallbackAnswer(callback, func() error { return nil })
}

func (b *Bot) handleStrategyQuery(name string, callback *tgbotapi.CallbackQuery) error {
	strategy, err := b.setStrategy(callback.From.ID, name)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("set strategy: %w", err))
	}

	if _, err = b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "✅ Strategy is updated.")); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	chatID := callbackChatID(callback)
	if chatID == 0 {
		return nil
	}

	return b.sendMessageWithKeyboard(chatID,
		fmt.Sprintf("✅ Strategy is set to %s\\.", escapeMarkdownV2(strategy)), nil)
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		errs = append(errs, b.errorCallbackAnswer(callback, fmt.Errorf("send request: %w", err)))
	}

	err := fn()
	if err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
