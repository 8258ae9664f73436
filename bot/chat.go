package bot

import (
	"context"
	"log/slog"

	"github.com/korjavin/mathpracticebot/browser"
	"github.com/korjavin/mathpracticebot/models"
	"github.com/korjavin/mathpracticebot/page"
	"github.com/korjavin/mathpracticebot/submission"
)

// chat is the window a single telegram chat browses the practice site with
type chat struct {
	id     int64
	owner  string
	bot    *Bot
	window *browser.Window
}

func newChat(b *Bot, chatID int64) (*chat, error) {
	w, err := browser.New()
	if err != nil {
		return nil, err
	}

	c := &chat{
		id:     chatID,
		owner:  ownerOf(chatID),
		bot:    b,
		window: w,
	}

	opts := append([]submission.Option{submission.WithResultObserver(c.record)}, b.handlerOptions...)
	browser.Install(w, opts...)
	w.AddReadyListener(c.pageLoaded)
	return c, nil
}

func (c *chat) record(ctx context.Context, a models.Attempt) {
	a.Owner = c.owner
	if err := c.bot.journal.SaveAttempt(ctx, a); err != nil {
		slog.Error("failed to save attempt", "owner", c.owner, "error", err)
	}
}

// pageLoaded shows a freshly loaded page in the chat and remembers it
func (c *chat) pageLoaded(ctx context.Context, doc *page.Document) {
	doc.Observe(c.outcome)

	if err := c.bot.journal.SaveLocation(ctx, c.owner, doc.URL().String()); err != nil {
		slog.Error("failed to save location", "owner", c.owner, "error", err)
	}

	if _, err := c.bot.api.Send(renderPage(c.id, doc)); err != nil {
		slog.Error("failed to send page", "chat", c.id, "url", doc.URL().String(), "error", err)
	}
}

// outcome turns the answer field's border colour into a chat message
func (c *chat) outcome(m page.Mutation) {
	if m.Control != "answer" || m.Kind != page.MutationStyle || m.Name != "border-color" {
		return
	}
	switch m.Value {
	case submission.CorrectColor:
		c.bot.sendMessage(c.id, "✅ Correct!")
	case submission.IncorrectColor:
		c.bot.sendMessage(c.id, "❌ Not quite, try again.")
	}
}
