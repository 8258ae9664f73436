package page

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Element is a control of the math problem form
type Element struct {
	doc     *Document
	node    *html.Node
	control string
}

// Value returns the current value of the control
func (e *Element) Value() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, _ := attr(e.node, "value")
	return v
}

// SetValue replaces the value of the control
func (e *Element) SetValue(value string) {
	e.doc.mutate(func() Mutation {
		setAttr(e.node, "value", value)
		return e.mutation(MutationValue, "value", value)
	})
}

// SetBorderColor sets the inline border-color style
func (e *Element) SetBorderColor(color string) {
	e.setStyle("border-color", color)
}

// Hide sets the inline display style to none
func (e *Element) Hide() {
	e.setStyle("display", "none")
}

// SetDisabled adds or removes the disabled attribute
func (e *Element) SetDisabled(disabled bool) {
	e.doc.mutate(func() Mutation {
		if disabled {
			setAttr(e.node, "disabled", "")
			return e.mutation(MutationAttribute, "disabled", "true")
		}
		removeAttr(e.node, "disabled")
		return e.mutation(MutationAttribute, "disabled", "false")
	})
}

// Disabled reports whether the control carries the disabled attribute
func (e *Element) Disabled() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	_, ok := attr(e.node, "disabled")
	return ok
}

// Hidden reports whether the control is styled display: none
func (e *Element) Hidden() bool {
	return e.Style("display") == "none"
}

// Style returns one property of the inline style attribute
func (e *Element) Style(property string) string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	style, _ := attr(e.node, "style")
	for _, decl := range parseStyle(style) {
		if decl.Property == property {
			return decl.Value
		}
	}
	return ""
}

func (e *Element) setStyle(property, value string) {
	e.doc.mutate(func() Mutation {
		style, _ := attr(e.node, "style")
		setAttr(e.node, "style", withStyle(style, property, value))
		return e.mutation(MutationStyle, property, value)
	})
}

// mutation must be called with the document lock held
func (e *Element) mutation(kind MutationKind, name, value string) Mutation {
	target, _ := attr(e.node, "id")
	if target == "" {
		target = e.node.Data
	}
	return Mutation{Target: target, Control: e.control, Kind: kind, Name: name, Value: value}
}

// parseStyle reads the declarations of an inline style attribute, property
// names lower-cased. A style that cannot be parsed counts as empty.
func parseStyle(style string) []*css.Declaration {
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return nil
	}
	for _, d := range decls {
		d.Property = strings.ToLower(strings.TrimSpace(d.Property))
		d.Value = strings.TrimSpace(d.Value)
	}
	return decls
}

// withStyle returns style with property set to value, keeping the order of
// the other declarations
func withStyle(style, property, value string) string {
	decls := parseStyle(style)
	found := false
	for _, d := range decls {
		if d.Property == property {
			d.Value = value
			d.Important = false
			found = true
		}
	}
	if !found {
		decls = append(decls, &css.Declaration{Property: property, Value: value})
	}

	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		part := d.Property + ": " + d.Value
		if d.Important {
			part += " !important"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
