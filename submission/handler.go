// Package submission intercepts math problem form submissions, posts the
// answer to the form's action and applies the server's verdict to the form.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/korjavin/mathpracticebot/models"
)

const (
	// CorrectColor is the answer border colour after a correct answer
	CorrectColor = "#00FF00"
	// IncorrectColor is the answer border colour after a wrong answer
	IncorrectColor = "#FF0000"
	// RedirectDelay is how long a correct answer stays on screen before navigating
	RedirectDelay = 1000 * time.Millisecond

	formContentType = "application/x-www-form-urlencoded"
)

var (
	ErrNoAnswerField   = errors.New("answer field #id_answer not found")
	ErrNoSubmitControl = errors.New("submit control input[type=submit] not found")
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Scheduler runs f once after d
type Scheduler func(d time.Duration, f func())

// ErrorReporter receives the failures the handler does not recover from
type ErrorReporter func(ctx context.Context, err error)

// ResultObserver is told about every answer the server ruled on
type ResultObserver func(ctx context.Context, attempt models.Attempt)

// Handler is the submit interceptor for math problem forms
type Handler struct {
	client    Doer
	navigator Navigator
	schedule  Scheduler
	report    ErrorReporter
	observe   ResultObserver
	tracer    trace.Tracer
}

// Option configures a Handler
type Option func(*Handler)

// WithClient sets the client used to post answers
func WithClient(c Doer) Option {
	return func(h *Handler) {
		h.client = c
	}
}

// WithScheduler replaces time.AfterFunc for the delayed navigation
func WithScheduler(s Scheduler) Option {
	return func(h *Handler) {
		h.schedule = s
	}
}

// WithErrorReporter replaces the default reporter, which logs the failure
func WithErrorReporter(r ErrorReporter) Option {
	return func(h *Handler) {
		h.report = r
	}
}

// WithResultObserver registers a hook that sees every decoded result
func WithResultObserver(o ResultObserver) Option {
	return func(h *Handler) {
		h.observe = o
	}
}

// NewHandler creates a handler that navigates through nav on success
func NewHandler(nav Navigator, opts ...Option) *Handler {
	h := &Handler{
		client:    http.DefaultClient,
		navigator: nav,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		report: logUnhandled,
		tracer: otel.Tracer("github.com/korjavin/mathpracticebot/submission"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Bootstrap is the document-ready step: it attaches the interceptor to the
// math problem form of doc and reports whether there was one. A page without
// the form is left alone.
func (h *Handler) Bootstrap(ctx context.Context, doc Document) bool {
	form := doc.MathProblemForm()
	if form == nil {
		return false
	}
	h.Attach(ctx, form)
	return true
}

// Attach registers the submit interceptor on form.
// The owner of page initialisation calls it once per page load.
func (h *Handler) Attach(ctx context.Context, form Form) {
	form.AddSubmitListener(func(ev Event) bool {
		return h.intercept(ctx, form, ev)
	})
}

// intercept suppresses the native submission, disables the submit control and
// hands the request to its own goroutine so dispatch returns straight away.
func (h *Handler) intercept(ctx context.Context, form Form, ev Event) bool {
	ev.PreventDefault()

	answer := form.AnswerField()
	submit := form.SubmitControl()
	if submit == nil {
		h.report(ctx, ErrNoSubmitControl)
		return false
	}
	submit.SetDisabled(true)

	if answer == nil {
		h.report(ctx, ErrNoAnswerField)
		return false
	}

	action := form.Action()
	sub := models.AnswerSubmission{Answer: answer.Value()}
	ctx = context.WithoutCancel(ctx)

	go func() {
		if err := h.Submit(ctx, action, sub, answer, submit); err != nil {
			h.report(ctx, err)
		}
	}()

	return false
}

// Submit posts sub to action and applies the verdict to the answer field and
// submit control. The submit control is expected to be disabled by the caller.
// A request that fails leaves it disabled.
func (h *Handler) Submit(ctx context.Context, action string, sub models.AnswerSubmission, answer AnswerField, submit SubmitControl) error {
	id := uuid.NewString()
	ctx, span := h.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.String("submission.id", id),
		attribute.String("submission.action", action),
	))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(sub.Body()))
	if err != nil {
		return spanError(span, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return spanError(span, fmt.Errorf("post answer to %s: %w", action, err))
	}
	defer resp.Body.Close()

	submit.SetDisabled(false)

	result, err := decodeResult(resp.Body)
	if err != nil {
		return spanError(span, err)
	}
	span.SetAttributes(attribute.Bool("submission.success", result.Success))
	slog.Debug("answer submitted", "id", id, "action", action, "status", resp.StatusCode, "success", result.Success)

	if h.observe != nil {
		h.observe(ctx, models.Attempt{
			ID:         id,
			Action:     action,
			Answer:     sub.Answer,
			Success:    result.Success,
			RedirectTo: result.RedirectTo,
			Timestamp:  time.Now().Unix(),
		})
	}

	if !result.Success {
		answer.SetValue("")
		answer.SetBorderColor(IncorrectColor)
		return nil
	}

	answer.SetBorderColor(CorrectColor)
	submit.Hide()

	redirect := result.RedirectTo
	navCtx := context.WithoutCancel(ctx)
	h.schedule(RedirectDelay, func() {
		if err := h.navigator.Navigate(navCtx, redirect); err != nil {
			h.report(navCtx, fmt.Errorf("navigate to %q: %w", redirect, err))
		}
	})
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func logUnhandled(_ context.Context, err error) {
	slog.Error("unhandled submission failure", "error", err)
}
