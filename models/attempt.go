package models

// Attempt is one submitted answer as recorded in the journal
type Attempt struct {
	ID         string
	Owner      string
	Action     string
	Answer     string
	Success    bool
	RedirectTo string
	Timestamp  int64
}

// Stats summarises the attempts of one owner
type Stats struct {
	Correct   int
	Incorrect int
}

// Total returns the number of attempts counted in the stats
func (s Stats) Total() int {
	return s.Correct + s.Incorrect
}

// Accuracy returns the share of correct attempts in percent
func (s Stats) Accuracy() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total()) * 100
}

// ProblemMisses counts the incorrect attempts against one problem
type ProblemMisses struct {
	Action string
	Misses int
}
