// Package page holds a parsed HTML page and the math problem form on it.
//
// A Document is shared between the host that renders it and reads user input,
// and the submission handler that mutates the form from its own goroutine, so
// every read and write of the tree goes through the document lock. Observers
// are notified of each mutation after the lock is released.
package page

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/korjavin/mathpracticebot/submission"
)

var (
	problemFormSelector = cascadia.MustCompile("form.math_problem")
	answerSelector      = cascadia.MustCompile("#id_answer")
	submitSelector      = cascadia.MustCompile("input[type=submit]")
	titleSelector       = cascadia.MustCompile("title")
	linkSelector        = cascadia.MustCompile("a[href]")
	bodySelector        = cascadia.MustCompile("body")
)

// MutationKind tells what part of an element changed
type MutationKind string

const (
	MutationStyle     MutationKind = "style"
	MutationAttribute MutationKind = "attribute"
	MutationValue     MutationKind = "value"
)

// Mutation describes one change made to an element of the document
type Mutation struct {
	// Target is the element id, or its tag name when it has none
	Target string
	// Control is "answer" or "submit" for the math problem form controls
	Control string
	Kind    MutationKind
	Name    string
	Value   string
}

// Link is an anchor on the page, with its href resolved against the page URL
type Link struct {
	Text string
	Href string
}

// Document is a parsed page
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	url       *url.URL
	form      *Form
	observers []func(Mutation)
}

// Parse reads an HTML page served from pageURL
func Parse(r io.Reader, pageURL *url.URL) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}
	return &Document{root: root, url: pageURL}, nil
}

// URL returns the address the document was loaded from
func (d *Document) URL() *url.URL {
	u := *d.url
	return &u
}

// Observe registers fn to be called after every mutation of the document
func (d *Document) Observe(fn func(Mutation)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// ProblemForm returns the math problem form, if the page has one.
// Repeated calls return the same form, listeners included.
func (d *Document) ProblemForm() (*Form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.form != nil {
		return d.form, true
	}
	node := problemFormSelector.MatchFirst(d.root)
	if node == nil {
		return nil, false
	}
	d.form = &Form{doc: d, node: node}
	return d.form, true
}

// MathProblemForm implements submission.Document
func (d *Document) MathProblemForm() submission.Form {
	if f, ok := d.ProblemForm(); ok {
		return f
	}
	return nil
}

// Title returns the text of the <title> element
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	node := titleSelector.MatchFirst(d.root)
	if node == nil {
		return ""
	}
	return textOf(node)
}

// Text returns the visible text of the page body, whitespace collapsed
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	node := bodySelector.MatchFirst(d.root)
	if node == nil {
		node = d.root
	}
	return textOf(node)
}

// Links returns the anchors of the page in document order
func (d *Document) Links() []Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	var links []Link
	for _, node := range linkSelector.MatchAll(d.root) {
		href, _ := attr(node, "href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		links = append(links, Link{
			Text: textOf(node),
			Href: d.url.ResolveReference(ref).String(),
		})
	}
	return links
}

// mutate applies change under the document lock and then notifies observers
func (d *Document) mutate(change func() Mutation) {
	d.mu.Lock()
	m := change()
	observers := append([]func(Mutation){}, d.observers...)
	d.mu.Unlock()

	for _, fn := range observers {
		fn(m)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

// textOf collects the text below n, skipping scripts, styles and form inputs
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Input, atom.Button, atom.Textarea:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
