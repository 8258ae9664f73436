package terminal

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/korjavin/mathpracticebot/models"
)

func (s *Session) printSummary() {
	attempts := s.Attempts()
	if len(attempts) == 0 {
		fmt.Fprintln(s.out, "No answers submitted.")
		return
	}

	var stats models.Stats
	for _, a := range attempts {
		if a.Success {
			stats.Correct++
		} else {
			stats.Incorrect++
		}
	}

	fmt.Fprintln(s.out)
	WriteAttempts(s.out, attempts, s.color)
	fmt.Fprintf(s.out, "Correct %d of %d (%.1f%%)\n", stats.Correct, stats.Total(), stats.Accuracy())
}

// WriteAttempts renders attempts as a table
func WriteAttempts(w io.Writer, attempts []models.Attempt, color bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 30},
		{Number: 4, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})
	tw.AppendHeader(table.Row{"#", "Problem", "Answer", "Result", "Time"})

	for i, a := range attempts {
		result := "wrong"
		if a.Success {
			result = "correct"
		}
		if color {
			if a.Success {
				result = text.FgGreen.Sprint(result)
			} else {
				result = text.FgRed.Sprint(result)
			}
		}
		tw.AppendRow(table.Row{
			i + 1,
			problemPath(a.Action),
			a.Answer,
			result,
			time.Unix(a.Timestamp, 0).Format(time.TimeOnly),
		})
	}

	_ = tw.Render()
}

// problemPath shortens an action URL to its path
func problemPath(action string) string {
	u, err := url.Parse(action)
	if err != nil || u.Path == "" {
		return action
	}
	return u.Path
}
