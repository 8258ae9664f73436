package page

import (
	"errors"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/korjavin/mathpracticebot/submission"
)

// ErrSubmitDisabled is returned when the user tries to submit while the
// submit control is disabled.
var ErrSubmitDisabled = errors.New("submit control is disabled")

// Form is the math problem form of a document
type Form struct {
	doc       *Document
	node      *html.Node
	listeners []submission.Listener
}

var _ submission.Form = (*Form)(nil)

// Action returns the form's target, resolved against the page URL.
// A form without an action targets the page itself.
func (f *Form) Action() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	action, _ := attr(f.node, "action")
	ref, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return f.doc.url.String()
	}
	return f.doc.url.ResolveReference(ref).String()
}

// Text returns the problem as written in the form
func (f *Form) Text() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return textOf(f.node)
}

// Answer returns the #id_answer element, if the form has one
func (f *Form) Answer() (*Element, bool) {
	return f.find(answerSelector, "answer")
}

// Submit returns the input[type=submit] element, if the form has one
func (f *Form) Submit() (*Element, bool) {
	return f.find(submitSelector, "submit")
}

func (f *Form) find(sel cascadia.Selector, control string) (*Element, bool) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	node := sel.MatchFirst(f.node)
	if node == nil {
		return nil, false
	}
	return &Element{doc: f.doc, node: node, control: control}, true
}

// AnswerField implements submission.Form
func (f *Form) AnswerField() submission.AnswerField {
	el, ok := f.Answer()
	if !ok {
		return nil
	}
	return el
}

// SubmitControl implements submission.Form
func (f *Form) SubmitControl() submission.SubmitControl {
	el, ok := f.Submit()
	if !ok {
		return nil
	}
	return el
}

// AddSubmitListener registers l for submit events of this form
func (f *Form) AddSubmitListener(l submission.Listener) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

// ListenerCount returns the number of registered submit listeners, for hosts
// inspecting how a page load bound the form.
func (f *Form) ListenerCount() int {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return len(f.listeners)
}

// SetAnswer types value into the answer field
func (f *Form) SetAnswer(value string) error {
	el, ok := f.Answer()
	if !ok {
		return submission.ErrNoAnswerField
	}
	el.SetValue(value)
	return nil
}

// RequestSubmit dispatches a submit event the way pressing the submit
// control does, and reports whether a listener prevented the default
// submission. A disabled submit control cannot be pressed.
func (f *Form) RequestSubmit() (bool, error) {
	if el, ok := f.Submit(); ok && el.Disabled() {
		return false, ErrSubmitDisabled
	}

	f.doc.mu.Lock()
	listeners := append([]submission.Listener{}, f.listeners...)
	f.doc.mu.Unlock()

	ev := &SubmitEvent{}
	for _, l := range listeners {
		if !l(ev) {
			ev.PreventDefault()
		}
	}
	return ev.DefaultPrevented(), nil
}

// Values returns the named, non-submit controls of the form as form values,
// the payload of a native submission.
func (f *Form) Values() url.Values {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	values := url.Values{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			name, ok := attr(n, "name")
			typ, _ := attr(n, "type")
			if ok && name != "" && !strings.EqualFold(typ, "submit") {
				v, _ := attr(n, "value")
				values.Add(name, v)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(f.node)
	return values
}

// SubmitEvent is the event passed to submit listeners
type SubmitEvent struct {
	prevented bool
}

// PreventDefault suppresses the native submission
func (e *SubmitEvent) PreventDefault() {
	e.prevented = true
}

// DefaultPrevented reports whether the native submission was suppressed
func (e *SubmitEvent) DefaultPrevented() bool {
	return e.prevented
}
