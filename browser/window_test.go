package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mathpracticebot/page"
	"github.com/korjavin/mathpracticebot/submission"
)

const menuHTML = `<html><head><title>alice</title></head><body>
<a href="/alice/7/">Simple Addition/Subtraction</a>
</body></html>`

const problemHTML = `<html><head><title>Problem</title></head><body>
<form class="math_problem" action="/alice/7/" method="post">
  <p>40 + 2 =</p>
  <input type="text" id="id_answer" name="answer">
  <input type="submit" value="Check">
</form>
</body></html>`

type practiceSite struct {
	*httptest.Server

	mu      sync.Mutex
	posts   []url.Values
	cookies []string
}

func newPracticeSite(t *testing.T) *practiceSite {
	t.Helper()
	site := &practiceSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/alice/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, menuHTML)
	})
	mux.HandleFunc("/alice/7/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "practice", Value: "alice", Path: "/"})
			_, _ = io.WriteString(w, problemHTML)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(raw))
		cookie, _ := r.Cookie("practice")

		site.mu.Lock()
		site.posts = append(site.posts, values)
		if cookie != nil {
			site.cookies = append(site.cookies, cookie.Value)
		}
		site.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if values.Get("answer") == "42" {
			_, _ = io.WriteString(w, `{"success": true, "redirect_to": "/alice/"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success": false}`)
	})
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/alice/7/", http.StatusFound)
	})
	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func (s *practiceSite) received() ([]url.Values, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.posts...), append([]string(nil), s.cookies...)
}

func immediately(_ time.Duration, f func()) {
	go f()
}

func TestNavigateLoadsPageAndFiresReady(t *testing.T) {
	site := newPracticeSite(t)
	w, err := New()
	require.NoError(t, err)

	var loaded []string
	w.AddReadyListener(func(_ context.Context, doc *page.Document) {
		loaded = append(loaded, doc.URL().String())
	})

	require.NoError(t, w.Navigate(context.Background(), site.URL+"/start"))
	assert.Equal(t, site.URL+"/alice/7/", w.Location(), "redirects are followed")
	assert.Equal(t, []string{site.URL + "/alice/7/"}, loaded)

	require.NoError(t, w.Navigate(context.Background(), "/alice/"))
	assert.Equal(t, site.URL+"/alice/", w.Location(), "relative URLs resolve against the location")

	require.NoError(t, w.Navigate(context.Background(), ""))
	assert.Equal(t, site.URL+"/alice/", w.Location())
	assert.Len(t, loaded, 3)
}

func TestNavigateRelativeWithoutLocation(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	err = w.Navigate(context.Background(), "/alice/")
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestInstallSkipsPagesWithoutForm(t *testing.T) {
	site := newPracticeSite(t)
	w, err := New()
	require.NoError(t, err)
	Install(w)

	require.NoError(t, w.Navigate(context.Background(), site.URL+"/alice/"))
	_, ok := w.Document().ProblemForm()
	assert.False(t, ok)
}

func TestInstallBindsOneListenerPerPageLoad(t *testing.T) {
	site := newPracticeSite(t)
	w, err := New()
	require.NoError(t, err)
	Install(w)

	require.NoError(t, w.Navigate(context.Background(), site.URL+"/alice/7/"))
	first, ok := w.Document().ProblemForm()
	require.True(t, ok)
	assert.Equal(t, 1, first.ListenerCount())

	require.NoError(t, w.Navigate(context.Background(), ""))
	second, ok := w.Document().ProblemForm()
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, first.ListenerCount())
	assert.Equal(t, 1, second.ListenerCount())
}

func TestWrongThenRightAnswer(t *testing.T) {
	site := newPracticeSite(t)
	w, err := New()
	require.NoError(t, err)
	Install(w, submission.WithScheduler(immediately))

	ctx := context.Background()
	require.NoError(t, w.Navigate(ctx, site.URL+"/alice/7/"))
	form, ok := w.Document().ProblemForm()
	require.True(t, ok)
	answer, _ := form.Answer()
	submit, _ := form.Submit()

	require.NoError(t, form.SetAnswer("41"))
	require.NoError(t, w.Submit(ctx, form))
	assert.Eventually(t, func() bool {
		return answer.Style("border-color") == submission.IncorrectColor
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "", answer.Value())
	assert.False(t, submit.Disabled())
	assert.False(t, submit.Hidden())
	assert.Equal(t, site.URL+"/alice/7/", w.Location())

	require.NoError(t, form.SetAnswer("42"))
	require.NoError(t, w.Submit(ctx, form))
	assert.Eventually(t, func() bool {
		return w.Location() == site.URL+"/alice/"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, submission.CorrectColor, answer.Style("border-color"))
	assert.True(t, submit.Hidden())

	posts, cookies := site.received()
	require.Len(t, posts, 2)
	assert.Equal(t, "41", posts[0].Get("answer"))
	assert.Equal(t, "42", posts[1].Get("answer"))
	assert.Equal(t, []string{"alice", "alice"}, cookies, "submissions share the window's cookies")
}

func TestSubmitWithoutHandlerPostsNatively(t *testing.T) {
	site := newPracticeSite(t)
	w, err := New()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Navigate(ctx, site.URL+"/alice/7/"))
	form, _ := w.Document().ProblemForm()
	require.NoError(t, form.SetAnswer("7"))

	var reloaded bool
	w.AddReadyListener(func(context.Context, *page.Document) { reloaded = true })
	require.NoError(t, w.Submit(ctx, form))

	assert.True(t, reloaded, "native submission loads the response as a page")
	posts, _ := site.received()
	require.Len(t, posts, 1)
	assert.Equal(t, "7", posts[0].Get("answer"))
}

func TestHandlerNeverReloadsPage(t *testing.T) {
	site := newPracticeSite(t)
	w, err := New()
	require.NoError(t, err)
	errs := make(chan error, 4)
	Install(w,
		submission.WithScheduler(func(time.Duration, func()) {}),
		submission.WithErrorReporter(func(_ context.Context, err error) { errs <- err }),
	)

	ctx := context.Background()
	require.NoError(t, w.Navigate(ctx, site.URL+"/alice/7/"))

	var loads int
	w.AddReadyListener(func(context.Context, *page.Document) { loads++ })

	form, _ := w.Document().ProblemForm()
	answer, _ := form.Answer()
	for i := 0; i < 3; i++ {
		require.NoError(t, form.SetAnswer(fmt.Sprint(i)))
		require.NoError(t, w.Submit(ctx, form))
		assert.Eventually(t, func() bool {
			return answer.Style("border-color") == submission.IncorrectColor && answer.Value() == ""
		}, 2*time.Second, 10*time.Millisecond)
	}

	assert.Zero(t, loads)
	assert.Empty(t, errs)
}
