package logs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/valyala/fastjson"
)

// CSVHeader is the fixed column order of an export.
var CSVHeader = []string{"Timestamp", "User", "Module", "Action", "Level", "Status", "Message", "Details"}

// CSVTimeLayout formats the Timestamp column.
const CSVTimeLayout = "2006-01-02 15:04:05"

var detailsParsers fastjson.ParserPool

// WriteCSV writes the header and one row per entry, in order. Every cell is wrapped
// in double quotes with inner quotes doubled. Timestamps are rendered in loc.
func WriteCSV(w io.Writer, entries []*models.LogEntry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	bw := bufio.NewWriter(w)

	if err := writeRow(bw, CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.In(loc).Format(CSVTimeLayout),
			e.Actor.Label(),
			e.Module,
			e.Action,
			string(e.Level),
			e.Status,
			e.Message,
			CompactDetails(e.Details),
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, cells []string) error {
	for i, c := range cells {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(c)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CompactDetails renders a details payload as compact JSON. Invalid JSON is returned
// verbatim; absent or null details render as an empty string.
func CompactDetails(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	p := detailsParsers.Get()
	defer detailsParsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return string(raw)
	}
	if v.Type() == fastjson.TypeNull {
		return ""
	}
	return string(v.MarshalTo(nil))
}

// ExportFilename returns <subject>-logs-YYYY-MM-DD.csv for now's date.
func ExportFilename(subject string, now time.Time) string {
	return fmt.Sprintf("%s-logs-%s.csv", subject, now.Format(DateLayout))
}
