package models

// AnswerSubmission is the payload sent when a math problem form is submitted
type AnswerSubmission struct {
	Answer string
}

// Body renders the form-encoded request body.
// The answer is appended exactly as typed, without percent-encoding.
func (s AnswerSubmission) Body() string {
	return "answer=" + s.Answer
}

// SubmissionResult is the server's verdict on a submitted answer
type SubmissionResult struct {
	Success    bool   `json:"success"`
	RedirectTo string `json:"redirect_to,omitempty"`
}
