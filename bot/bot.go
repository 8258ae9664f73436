package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/korjavin/mathpracticebot/config"
	"github.com/korjavin/mathpracticebot/models"
	"github.com/korjavin/mathpracticebot/page"
	"github.com/korjavin/mathpracticebot/submission"
)

const (
	cmdStart  = "start"
	cmdReload = "reload"
	cmdHelp   = "help"
	cmdStat   = "stat"

	callbackPrefix = "nav:"
)

// Sender is the part of the telegram API the bot talks to
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Journal stores attempts and where each chat is
type Journal interface {
	SaveAttempt(ctx context.Context, a models.Attempt) error
	GetStats(ctx context.Context, owner string) (models.Stats, error)
	GetMostMissedProblems(ctx context.Context, owner string, limit int) ([]models.ProblemMisses, error)
	SaveLocation(ctx context.Context, owner, url string) error
	GetLocation(ctx context.Context, owner string) (string, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api            Sender
	journal        Journal
	baseURL        string
	handlerOptions []submission.Option

	mu    sync.Mutex
	chats map[int64]*chat
}

// New creates a new bot instance
func New(cfg *config.Config, journal Journal) (*Bot, error) {
	if err := cfg.RequireBotToken(); err != nil {
		return nil, err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	botAPI.Debug = cfg.Level() == slog.LevelDebug

	slog.Info("authorized on telegram", "account", botAPI.Self.UserName)
	return newBot(botAPI, journal, cfg.BaseURL), nil
}

func newBot(api Sender, journal Journal, baseURL string, opts ...submission.Option) *Bot {
	return &Bot{
		api:            api,
		journal:        journal,
		baseURL:        baseURL,
		handlerOptions: opts,
		chats:          make(map[int64]*chat),
	}
}

// Start polls telegram for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	api, ok := b.api.(*tgbotapi.BotAPI)
	if !ok {
		return errors.New("bot was not created with a telegram client")
	}
	slog.Info("starting bot polling")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for update := range updates {
			b.HandleUpdate(ctx, update)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		api.StopReceivingUpdates()
		return nil
	})
	return g.Wait()
}

// HandleUpdate dispatches one update from telegram
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	} else if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	slog.Debug("received message", "chat", chatID, "text", message.Text)

	switch {
	case strings.HasPrefix(message.Text, "/"+cmdStart):
		b.handleStartCommand(ctx, message)
	case strings.HasPrefix(message.Text, "/"+cmdReload):
		b.handleReloadCommand(ctx, message)
	case strings.HasPrefix(message.Text, "/"+cmdHelp):
		b.sendMessage(chatID, helpText)
	case strings.HasPrefix(message.Text, "/"+cmdStat):
		b.handleStatCommand(ctx, message)
	case strings.HasPrefix(message.Text, "/"):
		b.sendMessage(chatID, "Unknown command. Use /start to begin or /help for assistance.")
	default:
		b.handleAnswer(ctx, message)
	}
}

const helpText = `Math practice in chat.

Commands:
/start - Go to the practice home page
/reload - Show the current page again
/stat - View your statistics

On a problem page just type your answer. On other pages pick a button.`

const unreachableText = "Sorry, the practice site is not reachable right now."

// handleStartCommand opens the practice home page
func (b *Bot) handleStartCommand(ctx context.Context, message *tgbotapi.Message) {
	c, err := b.chat(message.Chat.ID)
	if err != nil {
		slog.Error("failed to open chat window", "chat", message.Chat.ID, "error", err)
		b.sendMessage(message.Chat.ID, unreachableText)
		return
	}
	if err := c.window.Navigate(ctx, b.baseURL); err != nil {
		slog.Error("failed to load home page", "chat", c.id, "error", err)
		b.sendMessage(c.id, unreachableText)
	}
}

// handleReloadCommand loads the current page again
func (b *Bot) handleReloadCommand(ctx context.Context, message *tgbotapi.Message) {
	c, ok := b.openChat(ctx, message.Chat.ID)
	if !ok {
		return
	}
	if err := c.window.Navigate(ctx, ""); err != nil {
		slog.Error("failed to reload page", "chat", c.id, "error", err)
		b.sendMessage(c.id, "Sorry, the page could not be reloaded.")
	}
}

// handleStatCommand handles the /stat command
func (b *Bot) handleStatCommand(ctx context.Context, message *tgbotapi.Message) {
	owner := ownerOf(message.Chat.ID)
	stats, err := b.journal.GetStats(ctx, owner)
	if err != nil {
		slog.Error("failed to get stats", "owner", owner, "error", err)
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't retrieve your statistics. Please try again later.")
		return
	}

	statMessage := fmt.Sprintf(`📊 Your Statistics:

Answers Submitted: %d
Correct Answers: %d ✅
Incorrect Answers: %d ❌
Accuracy: %.1f%%`, stats.Total(), stats.Correct, stats.Incorrect, stats.Accuracy())

	if stats.Incorrect > 0 {
		missed, err := b.journal.GetMostMissedProblems(ctx, owner, 3)
		if err != nil {
			slog.Error("failed to get missed problems", "owner", owner, "error", err)
		}
		if len(missed) > 0 {
			statMessage += "\n\nMost Challenging Problems:\n"
			for i, m := range missed {
				statMessage += fmt.Sprintf("%d. %s (%d wrong)\n", i+1, m.Action, m.Misses)
			}
		}
	}

	b.sendMessage(message.Chat.ID, statMessage)
}

// handleAnswer types the message into the answer field and submits it
func (b *Bot) handleAnswer(ctx context.Context, message *tgbotapi.Message) {
	c, ok := b.openChat(ctx, message.Chat.ID)
	if !ok {
		return
	}

	form, ok := c.window.Document().ProblemForm()
	if !ok {
		b.sendMessage(c.id, "There is no problem on this page. Pick a button or use /start.")
		return
	}

	if err := form.SetAnswer(strings.TrimSpace(message.Text)); err != nil {
		slog.Error("problem form has no answer field", "chat", c.id, "error", err)
		return
	}
	if err := c.window.Submit(ctx, form); err != nil {
		if errors.Is(err, page.ErrSubmitDisabled) {
			b.sendMessage(c.id, "Still checking your previous answer...")
			return
		}
		slog.Error("failed to submit answer", "chat", c.id, "error", err)
	}
}

// handleCallback follows a link picked from an inline keyboard
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	slog.Debug("handling callback", "user", callback.From.ID, "data", callback.Data)

	index, err := parseCallback(callback.Data)
	if err != nil {
		slog.Warn("ignoring callback", "error", err)
		return
	}

	b.sendCallbackResponse(callback.ID, "Opening...")

	if callback.Message == nil {
		return
	}
	c, ok := b.openChat(ctx, callback.Message.Chat.ID)
	if !ok {
		return
	}

	links := c.window.Document().Links()
	if index >= len(links) {
		b.sendMessage(c.id, "That link is no longer on the page. Use /reload to see the current page.")
		return
	}
	if err := c.window.Navigate(ctx, links[index].Href); err != nil {
		slog.Error("failed to follow link", "chat", c.id, "href", links[index].Href, "error", err)
		b.sendMessage(c.id, "Sorry, that page could not be opened.")
	}
}

// chat returns the window of a chat, creating it on first use
func (b *Bot) chat(chatID int64) (*chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chats[chatID]; ok {
		return c, nil
	}
	c, err := newChat(b, chatID)
	if err != nil {
		return nil, err
	}
	b.chats[chatID] = c
	return c, nil
}

// openChat returns a chat window with a page loaded in it. A window that has
// not loaded anything yet goes back to the page saved for the chat, or to the
// home page. Failures are reported to the chat.
func (b *Bot) openChat(ctx context.Context, chatID int64) (*chat, bool) {
	c, err := b.chat(chatID)
	if err != nil {
		slog.Error("failed to open chat window", "chat", chatID, "error", err)
		b.sendMessage(chatID, unreachableText)
		return nil, false
	}
	if c.window.Document() != nil {
		return c, true
	}

	location, err := b.journal.GetLocation(ctx, c.owner)
	if err != nil {
		slog.Error("failed to restore location", "owner", c.owner, "error", err)
	}
	if location == "" {
		location = b.baseURL
	}
	if err := c.window.Navigate(ctx, location); err != nil {
		slog.Error("failed to restore page", "chat", chatID, "url", location, "error", err)
		b.sendMessage(chatID, unreachableText)
		return nil, false
	}
	return c, true
}

func ownerOf(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

// sendMessage sends a plain text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("failed to send message", "chat", chatID, "error", err)
	}
}

// sendCallbackResponse sends a response to a callback query
func (b *Bot) sendCallbackResponse(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		slog.Error("failed to answer callback", "error", err)
	}
}
