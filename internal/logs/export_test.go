package logs

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/logkeeper/internal/models"
)

func TestWriteCSVFormat(t *testing.T) {
	entries := []*models.LogEntry{
		{
			ID:        "1",
			Timestamp: time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC),
			Level:     models.LevelError,
			Module:    "auth",
			Action:    "Login failed",
			Message:   `bad "password", retry`,
			Status:    "error",
			Actor:     models.StructuredActor(models.Performer{ID: "u1", Name: "Alice"}),
			Details:   json.RawMessage("{\n  \"attempts\": 3,\n  \"ip\": \"10.0.0.1\"\n}"),
		},
		{
			ID:        "2",
			Timestamp: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
			Level:     models.LevelInfo,
			Message:   "plain",
			Actor:     models.LegacyActor("bob", ""),
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries, time.UTC); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	wantHeader := `"Timestamp","User","Module","Action","Level","Status","Message","Details"`
	if lines[0] != wantHeader {
		t.Errorf("header = %s", lines[0])
	}
	wantRow := `"2024-02-01 08:30:00","Alice","auth","Login failed","error","error","bad ""password"", retry","{""attempts"":3,""ip"":""10.0.0.1""}"`
	if lines[1] != wantRow {
		t.Errorf("row = %s\nwant  %s", lines[1], wantRow)
	}
	if lines[2] != `"2024-02-01 09:00:00","bob","","","info","","plain",""` {
		t.Errorf("row = %s", lines[2])
	}
}

// Parsing an export recovers one row per entry with the fixed column order.
func TestCSVRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("export parses back to the same rows", prop.ForAll(
		func(entries []*models.LogEntry) bool {
			var buf bytes.Buffer
			if err := WriteCSV(&buf, entries, time.UTC); err != nil {
				return false
			}
			records, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				return false
			}
			if len(records) != len(entries)+1 {
				return false
			}
			for i, h := range CSVHeader {
				if records[0][i] != h {
					return false
				}
			}
			for i, e := range entries {
				row := records[i+1]
				if len(row) != len(CSVHeader) ||
					row[1] != e.Actor.Label() ||
					row[2] != e.Module ||
					row[3] != e.Action ||
					row[4] != string(e.Level) ||
					row[6] != e.Message {
					return false
				}
			}
			return true
		},
		genEntries(),
	))

	properties.TestingRun(t)
}

func TestCompactDetails(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"null", ""},
		{`{ "a" : [1, 2] }`, `{"a":[1,2]}`},
		{`"text"`, `"text"`},
		{`{broken`, `{broken`},
	}
	for _, tt := range tests {
		if got := CompactDetails(json.RawMessage(tt.in)); got != tt.want {
			t.Errorf("CompactDetails(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	if got := ExportFilename(models.StreamActivity.Subject(), now); got != "activity-logs-2024-03-09.csv" {
		t.Errorf("got %s", got)
	}
	if got := ExportFilename(models.StreamSystem.Subject(), now); got != "system-logs-2024-03-09.csv" {
		t.Errorf("got %s", got)
	}
}
