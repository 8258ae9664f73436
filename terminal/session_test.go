package terminal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mathpracticebot/models"
	"github.com/korjavin/mathpracticebot/submission"
)

const menuHTML = `<html><head><title>Pick a difficulty</title></head><body>
<a href="/alice/7/">Simple Addition/Subtraction</a>
<a href="/alice/summary/">Summary</a>
</body></html>`

const problemHTML = `<html><head><title>Problem</title></head><body>
<form class="math_problem" action="/alice/7/" method="post">
  <p>40 + 2 =</p>
  <input type="text" id="id_answer" name="answer">
  <input type="submit" value="Check">
</form>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/alice/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, menuHTML)
	})
	mux.HandleFunc("/alice/7/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, problemHTML)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if string(raw) == "answer=42" {
			_, _ = io.WriteString(w, `{"success": true, "redirect_to": "/alice/"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success": false}`)
	})
	mux.HandleFunc("/broken/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, strings.Replace(problemHTML, `action="/alice/7/"`, `action="/broken/"`, 1))
			return
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type memoryJournal struct {
	mu        sync.Mutex
	attempts  []models.Attempt
	locations []string
}

func (j *memoryJournal) SaveAttempt(_ context.Context, a models.Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, a)
	return nil
}

func (j *memoryJournal) SaveLocation(_ context.Context, _ string, url string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.locations = append(j.locations, url)
	return nil
}

func immediately(_ time.Duration, f func()) {
	go f()
}

func newSession(t *testing.T, input string, journal Journal) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s, err := New(Options{
		In:             strings.NewReader(input),
		Out:            &out,
		Owner:          "terminal:alice",
		Journal:        journal,
		Width:          60,
		HandlerOptions: []submission.Option{submission.WithScheduler(immediately)},
	})
	require.NoError(t, err)
	return s, &out
}

func TestRunWrongThenRightAnswer(t *testing.T) {
	site := newSite(t)
	journal := &memoryJournal{}
	s, out := newSession(t, "41\n42\nq\n", journal)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx, site.URL+"/alice/7/"))

	output := out.String()
	assert.Contains(t, output, "40 + 2 =")
	assert.Contains(t, output, "✗ Not quite, try again.")
	assert.Contains(t, output, "✓ Correct!")
	assert.Contains(t, output, "Simple Addition/Subtraction", "the menu is shown after the redirect")
	assert.Contains(t, output, "Correct 1 of 2 (50.0%)")
	assert.NotContains(t, output, "\x1b[", "no colours when disabled")

	assert.Equal(t, site.URL+"/alice/", s.Window().Location())

	attempts := s.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, "41", attempts[0].Answer)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, "42", attempts[1].Answer)
	assert.True(t, attempts[1].Success)
	assert.Equal(t, "terminal:alice", attempts[1].Owner)

	journal.mu.Lock()
	defer journal.mu.Unlock()
	assert.Len(t, journal.attempts, 2)
	assert.Equal(t, []string{site.URL + "/alice/7/", site.URL + "/alice/"}, journal.locations)
}

func TestRunFollowsLinks(t *testing.T) {
	site := newSite(t)
	s, out := newSession(t, "9\n1\n42\n", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx, site.URL+"/alice/"))

	output := out.String()
	assert.Contains(t, output, "  1) Simple Addition/Subtraction")
	assert.Contains(t, output, "Pick a number between 1 and 2.")
	assert.Contains(t, output, "✓ Correct!")
	assert.Contains(t, output, "Correct 1 of 1")
}

func TestRunWithoutAnswers(t *testing.T) {
	site := newSite(t)
	s, out := newSession(t, "", nil)
	require.NoError(t, s.Run(context.Background(), site.URL+"/alice/7/"))
	assert.Contains(t, out.String(), "No answers submitted.")
}

func TestRunStopsOnNetworkFailure(t *testing.T) {
	site := newSite(t)
	s, _ := newSession(t, "5\n", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Run(ctx, site.URL+"/broken/")
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriteAttempts(t *testing.T) {
	var out bytes.Buffer
	WriteAttempts(&out, []models.Attempt{
		{Action: "http://site/alice/7/", Answer: "41", Success: false, Timestamp: 0},
		{Action: "http://site/alice/7/", Answer: "42", Success: true, Timestamp: 0},
	}, false)

	table := out.String()
	assert.Contains(t, table, "PROBLEM", "headers are upper-cased by the rounded style")
	assert.Contains(t, table, "/alice/7/")
	assert.Contains(t, table, "wrong")
	assert.Contains(t, table, "correct")
}

func TestShouldUseColorOnBuffer(t *testing.T) {
	assert.False(t, ShouldUseColor(&bytes.Buffer{}))
	t.Setenv("COLUMNS", "100")
	assert.Equal(t, 100, DetermineWidth(&bytes.Buffer{}))
}
