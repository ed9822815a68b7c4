package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oli-a11y/albar-autos-feed/app/database"
	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

func TestTable_Render(t *testing.T) {
	table := &Table{Headers: []string{"Name", "Value"}}
	table.Append("price", "12995 GBP")
	table.Append("colour", "Black")

	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf))

	expected := "Name    Value\n" +
		"------  ---------\n" +
		"price   12995 GBP\n" +
		"colour  Black\n"
	assert.Equal(t, expected, buf.String())
}

func TestTable_WideCharactersAligned(t *testing.T) {
	table := &Table{Headers: []string{"Dealer", "Count"}}
	table.Append("東京モーターズ", "3")
	table.Append("Albar", "12")

	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	// 7 wide characters take 14 cells, plus the 2 cell gutter.
	assert.Equal(t, "東京モーターズ  3", lines[2])
	assert.Equal(t, "Albar           12", lines[3])
}

func TestTable_TruncatesLongCells(t *testing.T) {
	table := &Table{Headers: []string{"Error"}}
	table.Append(strings.Repeat("x", 100))

	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf))

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 60))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, Summary{
		RunID:     "run-1",
		Output:    "feed.xml",
		Records:   3,
		Included:  2,
		Rejected:  []feed.Rejection{{Index: 0, ID: "AA11AAA", Reason: "zero price"}},
		Duration:  1234 * time.Millisecond,
		FeedBytes: 4096,
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "1.234s")
	assert.Contains(t, out, "AA11AAA")
	assert.Contains(t, out, "zero price")
}

func TestWriteRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	finished := started.Add(2 * time.Second)

	var buf bytes.Buffer
	err := WriteRuns(&buf, []database.Run{
		{ID: "run-2", Origin: "schedule", Status: database.RunStatusFailed, Error: "source unavailable: HTTP error: 503", StartedAt: started, FinishedAt: &finished},
		{ID: "run-1", Origin: "cli", Status: database.RunStatusSuccess, Included: 40, Rejected: 2, StartedAt: started},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "2026-03-01 09:00:00")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "2s")
	assert.Contains(t, out, "source unavailable: HTTP error: 503")
}
