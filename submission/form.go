package submission

import "context"

// AnswerField is the value-bearing input that holds the user's answer
type AnswerField interface {
	Value() string
	SetValue(value string)
	SetBorderColor(color string)
}

// SubmitControl is the control that triggers a submission
type SubmitControl interface {
	SetDisabled(disabled bool)
	Hide()
}

// Event is a submit event dispatched by a form
type Event interface {
	PreventDefault()
}

// Listener handles a submit event. Returning false also suppresses the
// default submission.
type Listener func(ev Event) bool

// Form is the capability set the handler needs from a math problem form.
// AnswerField and SubmitControl return nil when the form lacks them.
type Form interface {
	Action() string
	AnswerField() AnswerField
	SubmitControl() SubmitControl
	AddSubmitListener(l Listener)
}

// Navigator changes the location of the page that owns the form
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Document is a loaded page. MathProblemForm returns nil when the page has no
// form with class math_problem.
type Document interface {
	MathProblemForm() Form
}
