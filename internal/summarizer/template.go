package summarizer

import (
	"errors"
	"strconv"
	"strings"
)

const (
	textSlot  = "{text}"
	wordsSlot = "{words}"

	DefaultPrompt = "Provide a summary of the following content in {words} words:\ncontent: {text}"
)

var (
	errNoTextSlot       = errors.New("prompt has no {text} placeholder")
	errMultipleTextSlot = errors.New("prompt has more than one {text} placeholder")
)

// Template is a prompt with exactly one {text} slot.
type Template struct {
	prefix string
	suffix string
}

// ParseTemplate fills the optional {words} slot and validates the {text} slot.
// An empty prompt selects DefaultPrompt.
func ParseTemplate(prompt string, words int) (Template, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}

	prompt = strings.ReplaceAll(prompt, wordsSlot, strconv.Itoa(words))

	switch strings.Count(prompt, textSlot) {
	case 0:
		return Template{}, errNoTextSlot
	case 1:
	default:
		return Template{}, errMultipleTextSlot
	}

	prefix, suffix, _ := strings.Cut(prompt, textSlot)

	return Template{prefix: prefix, suffix: suffix}, nil
}

func (t Template) Fill(text string) string {
	return t.prefix + text + t.suffix
}
