package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/mathpracticebot/page"
)

const (
	// telegram rejects messages with more visible characters than this
	maxMessageLength = 4096
	maxTitleLength   = 256
	// links beyond this are left off the keyboard
	maxLinkButtons = 40
	maxButtonText  = 60
)

// renderPage builds the message that shows doc in a chat. Problem pages ask
// for an answer; other pages list their links as buttons.
func renderPage(chatID int64, doc *page.Document) tgbotapi.MessageConfig {
	title := doc.Title()

	if form, ok := doc.ProblemForm(); ok {
		msg := tgbotapi.NewMessage(chatID, htmlMessage(title, form.Text(), "Type your answer."))
		msg.ParseMode = tgbotapi.ModeHTML
		return msg
	}

	links := doc.Links()
	body := doc.Text()
	if len(links) > 0 {
		body = "Pick one:"
	}
	msg := tgbotapi.NewMessage(chatID, htmlMessage(title, body, ""))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(links) > 0 {
		msg.ReplyMarkup = linkKeyboard(links)
	}
	return msg
}

// htmlMessage lays out a bold title, the body and an italic hint. The limit
// counts visible characters, so the plain text is cut before it is escaped
// and markup never gets split.
func htmlMessage(title, body, hint string) string {
	const gap = "\n\n"

	title = truncate(title, maxTitleLength)
	budget := maxMessageLength
	if title != "" {
		budget -= utf8.RuneCountInString(title + gap)
	}
	if hint != "" {
		budget -= utf8.RuneCountInString(gap + hint)
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString("<b>" + html.EscapeString(title) + "</b>" + gap)
	}
	sb.WriteString(html.EscapeString(truncate(body, budget)))
	if hint != "" {
		sb.WriteString(gap + "<i>" + html.EscapeString(hint) + "</i>")
	}
	return sb.String()
}

// linkKeyboard lays out one button per link, in page order
func linkKeyboard(links []page.Link) tgbotapi.InlineKeyboardMarkup {
	if len(links) > maxLinkButtons {
		links = links[:maxLinkButtons]
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, link := range links {
		label := link.Text
		if label == "" {
			label = link.Href
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncate(label, maxButtonText), callbackData(i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func callbackData(index int) string {
	return callbackPrefix + strconv.Itoa(index)
}

// parseCallback returns the link index encoded in callback data
func parseCallback(data string) (int, error) {
	raw, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid callback prefix in %q", data)
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid link index in %q", data)
	}
	return index, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
