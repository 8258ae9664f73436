// Package terminal lets a user work through practice pages from a terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/korjavin/mathpracticebot/browser"
	"github.com/korjavin/mathpracticebot/models"
	"github.com/korjavin/mathpracticebot/page"
	"github.com/korjavin/mathpracticebot/submission"
)

// Journal stores attempts and the last visited page
type Journal interface {
	SaveAttempt(ctx context.Context, a models.Attempt) error
	SaveLocation(ctx context.Context, owner, url string) error
}

// Options configure a Session
type Options struct {
	In      io.Reader
	Out     io.Writer
	Owner   string
	Journal Journal
	Color   bool
	Width   int
	// HandlerOptions are passed on to the submission handler
	HandlerOptions []submission.Option
	// Transport replaces the window's HTTP transport
	Transport http.RoundTripper
}

type eventKind int

const (
	eventCorrect eventKind = iota
	eventIncorrect
	eventLoaded
	eventFailed
)

type event struct {
	kind eventKind
	err  error
}

// Session is one interactive run in a terminal
type Session struct {
	window  *browser.Window
	in      *bufio.Scanner
	out     io.Writer
	owner   string
	journal Journal
	color   bool
	width   int
	events  chan event

	mu       sync.Mutex
	attempts []models.Attempt
}

// New prepares a session; nothing is loaded until Run
func New(opts Options) (*Session, error) {
	var windowOpts []browser.Option
	if opts.Transport != nil {
		windowOpts = append(windowOpts, browser.WithTransport(opts.Transport))
	}
	w, err := browser.New(windowOpts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		window:  w,
		in:      bufio.NewScanner(opts.In),
		out:     opts.Out,
		owner:   opts.Owner,
		journal: opts.Journal,
		color:   opts.Color,
		width:   opts.Width,
		events:  make(chan event, 8),
	}
	if s.width <= 0 {
		s.width = 80
	}

	handlerOpts := append([]submission.Option{
		submission.WithResultObserver(s.record),
		submission.WithErrorReporter(func(_ context.Context, err error) {
			s.events <- event{kind: eventFailed, err: err}
		}),
	}, opts.HandlerOptions...)
	browser.Install(w, handlerOpts...)
	w.AddReadyListener(s.pageLoaded)

	return s, nil
}

// Window returns the window the session browses with
func (s *Session) Window() *browser.Window {
	return s.window
}

// Attempts returns the answers submitted so far
func (s *Session) Attempts() []models.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Attempt(nil), s.attempts...)
}

func (s *Session) record(ctx context.Context, a models.Attempt) {
	a.Owner = s.owner
	s.mu.Lock()
	s.attempts = append(s.attempts, a)
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.SaveAttempt(ctx, a); err != nil {
			slog.Error("failed to save attempt", "owner", s.owner, "error", err)
		}
	}
}

func (s *Session) pageLoaded(ctx context.Context, doc *page.Document) {
	doc.Observe(func(m page.Mutation) {
		if m.Control != "answer" || m.Kind != page.MutationStyle || m.Name != "border-color" {
			return
		}
		switch m.Value {
		case submission.CorrectColor:
			s.events <- event{kind: eventCorrect}
		case submission.IncorrectColor:
			s.events <- event{kind: eventIncorrect}
		}
	})

	if s.journal != nil {
		if err := s.journal.SaveLocation(ctx, s.owner, doc.URL().String()); err != nil {
			slog.Error("failed to save location", "owner", s.owner, "error", err)
		}
	}
	s.events <- event{kind: eventLoaded}
}

// Run opens start and works through pages until the input ends, the user
// quits or a submission fails.
func (s *Session) Run(ctx context.Context, start string) error {
	if err := s.navigate(ctx, start); err != nil {
		return err
	}

	for {
		doc := s.window.Document()
		s.render(doc)

		form, isProblem := doc.ProblemForm()
		prompt := "choose a link (q to quit)> "
		if isProblem {
			prompt = "answer (q to quit)> "
		}

		line, ok := s.readLine(prompt)
		if !ok || line == "q" {
			break
		}

		if !isProblem {
			if err := s.follow(ctx, doc, line); err != nil {
				return err
			}
			continue
		}

		if err := s.answer(ctx, form, line); err != nil {
			return err
		}
	}

	s.printSummary()
	return nil
}

func (s *Session) navigate(ctx context.Context, raw string) error {
	if err := s.window.Navigate(ctx, raw); err != nil {
		return err
	}
	s.drainLoaded()
	return nil
}

// drainLoaded drops the load events of navigations the session made itself
func (s *Session) drainLoaded() {
	for {
		select {
		case ev := <-s.events:
			if ev.kind != eventLoaded {
				s.events <- ev
				return
			}
		default:
			return
		}
	}
}

func (s *Session) follow(ctx context.Context, doc *page.Document, choice string) error {
	links := doc.Links()
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(links) {
		fmt.Fprintf(s.out, "Pick a number between 1 and %d.\n", len(links))
		return nil
	}
	return s.navigate(ctx, links[n-1].Href)
}

func (s *Session) answer(ctx context.Context, form *page.Form, value string) error {
	if err := form.SetAnswer(value); err != nil {
		return err
	}
	if err := s.window.Submit(ctx, form); err != nil {
		if errors.Is(err, page.ErrSubmitDisabled) {
			fmt.Fprintln(s.out, "Still checking the previous answer.")
			return nil
		}
		return err
	}

	for {
		ev, err := s.next(ctx)
		if err != nil {
			return err
		}
		switch ev.kind {
		case eventIncorrect:
			fmt.Fprintln(s.out, s.paint("✗ Not quite, try again.", text.FgRed))
			return nil
		case eventCorrect:
			fmt.Fprintln(s.out, s.paint("✓ Correct!", text.FgGreen))
		case eventLoaded:
			return nil
		case eventFailed:
			return ev.err
		}
	}
}

func (s *Session) next(ctx context.Context) (event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-ctx.Done():
		return event{}, ctx.Err()
	}
}

func (s *Session) readLine(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.in.Scan() {
		fmt.Fprintln(s.out)
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *Session) render(doc *page.Document) {
	fmt.Fprintln(s.out)
	if title := doc.Title(); title != "" {
		fmt.Fprintln(s.out, s.paint(title, text.Bold, text.FgCyan))
	}

	if form, ok := doc.ProblemForm(); ok {
		fmt.Fprintln(s.out, text.WrapSoft(form.Text(), s.width))
		return
	}

	links := doc.Links()
	if len(links) == 0 {
		fmt.Fprintln(s.out, text.WrapSoft(doc.Text(), s.width))
		return
	}
	for i, link := range links {
		fmt.Fprintf(s.out, "%3d) %s\n", i+1, link.Text)
	}
}

func (s *Session) paint(msg string, colors ...text.Color) string {
	if !s.color {
		return msg
	}
	return text.Colors(colors).Sprint(msg)
}
