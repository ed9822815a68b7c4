package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

// Summary describes the outcome of one generation run.
type Summary struct {
	RunID     string
	Output    string
	Records   int
	Included  int
	Rejected  []feed.Rejection
	Duration  time.Duration
	FeedBytes int
}

func WriteSummary(w io.Writer, s Summary) error {
	t := &Table{Headers: []string{"Run", "Records", "Included", "Rejected", "Bytes", "Duration", "Output"}}
	t.Append(
		s.RunID,
		strconv.Itoa(s.Records),
		strconv.Itoa(s.Included),
		strconv.Itoa(len(s.Rejected)),
		strconv.Itoa(s.FeedBytes),
		s.Duration.Round(time.Millisecond).String(),
		s.Output,
	)
	if err := t.Render(w); err != nil {
		return err
	}

	if len(s.Rejected) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return WriteRejections(w, s.Rejected)
}

func WriteRejections(w io.Writer, rejections []feed.Rejection) error {
	t := &Table{Headers: []string{"Row", "Vehicle", "Reason"}}
	for _, r := range rejections {
		t.Append(strconv.Itoa(r.Index), r.ID, r.Reason)
	}
	return t.Render(w)
}

func WriteRuns(w io.Writer, runs []database.Run) error {
	t := &Table{Headers: []string{"Started", "Run", "Origin", "Status", "Included", "Rejected", "Duration", "Error"}}
	for _, r := range runs {
		t.Append(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.ID,
			r.Origin,
			string(r.Status),
			strconv.Itoa(r.Included),
			strconv.Itoa(r.Rejected),
			r.Duration().Round(time.Millisecond).String(),
			r.Error,
		)
	}
	return t.Render(w)
}
