// Package browser loads practice pages into a headless window and binds the
// submission handler to the math problem form of each page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"

	"github.com/korjavin/mathpracticebot/page"
	"github.com/korjavin/mathpracticebot/submission"
)

// ErrNoLocation is returned when a relative URL is opened in a window that has
// not loaded any page yet.
var ErrNoLocation = errors.New("window has no location to resolve against")

// ReadyFunc is called once a page has been loaded into the window
type ReadyFunc func(ctx context.Context, doc *page.Document)

// Window holds the current page and the HTTP client pages are loaded with.
// Cookies set by the site are shared by navigation and answer submission.
type Window struct {
	client *http.Client

	mu       sync.Mutex
	location *url.URL
	doc      *page.Document
	ready    []ReadyFunc
}

// Option configures a Window
type Option func(*Window)

// WithTransport replaces the default traced transport
func WithTransport(rt http.RoundTripper) Option {
	return func(w *Window) {
		w.client.Transport = rt
	}
}

// New creates an empty window
func New(opts ...Option) (*Window, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	w := &Window{
		client: &http.Client{
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Client returns the client the window loads pages with
func (w *Window) Client() *http.Client {
	return w.client
}

// Location returns the URL of the current page, or "" before the first load
func (w *Window) Location() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.location == nil {
		return ""
	}
	return w.location.String()
}

// Document returns the current page, or nil before the first load
func (w *Window) Document() *page.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

// AddReadyListener registers fn for every page load. Listeners run in
// registration order on the goroutine that navigated.
func (w *Window) AddReadyListener(fn ReadyFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = append(w.ready, fn)
}

// Navigate opens raw, resolved against the current location.
// An empty raw reloads the current page.
func (w *Window) Navigate(ctx context.Context, raw string) error {
	target, err := w.resolve(raw)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", target, err)
	}
	return w.load(ctx, req)
}

// Submit presses the submit control of form. Unless a listener suppresses
// it, the form is posted natively and the response replaces the page.
func (w *Window) Submit(ctx context.Context, form *page.Form) error {
	prevented, err := form.RequestSubmit()
	if err != nil {
		return err
	}
	if prevented {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.Action(), strings.NewReader(form.Values().Encode()))
	if err != nil {
		return fmt.Errorf("build native submission: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return w.load(ctx, req)
}

func (w *Window) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.location == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("open %q: %w", raw, ErrNoLocation)
		}
		return ref, nil
	}
	return w.location.ResolveReference(ref), nil
}

func (w *Window) load(ctx context.Context, req *http.Request) error {
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("load %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	// the final URL after redirects is where the page lives
	final := resp.Request.URL
	doc, err := page.Parse(resp.Body, final)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.location = final
	w.doc = doc
	listeners := append([]ReadyFunc{}, w.ready...)
	w.mu.Unlock()

	slog.Info("page loaded", "url", final.String(), "status", resp.StatusCode)

	for _, fn := range listeners {
		fn(ctx, doc)
	}
	return nil
}

// Install creates the submission handler for w and binds it to the math
// problem form of every page the window loads. Pages without the form are
// left alone.
func Install(w *Window, opts ...submission.Option) *submission.Handler {
	opts = append([]submission.Option{submission.WithClient(w.Client())}, opts...)
	h := submission.NewHandler(w, opts...)

	w.AddReadyListener(func(ctx context.Context, doc *page.Document) {
		if !h.Bootstrap(ctx, doc) {
			return
		}
		form, _ := doc.ProblemForm()
		slog.Debug("submission handler bound", "url", doc.URL().String(), "listeners", form.ListenerCount())
	})
	return h
}
