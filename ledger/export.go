package ledger

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/warp/commission-engine/calendar"
)

// =============================================================================
// CSV EXPORT
// =============================================================================

var legacyHeader = []string{
	"name", "employeeId", "jobTitle", "team", "forTeam", "description",
	"amount", "revenue", "takeHome", "biWeekStart", "biWeekEnd",
}

// ExportOptions controls the export layout.
type ExportOptions struct {
	// Legacy drops the trailing biWeekKey column.
	Legacy bool
}

// Header returns the header row for opts.
func Header(opts ExportOptions) []string {
	h := append([]string(nil), legacyHeader...)
	if !opts.Legacy {
		h = append(h, "biWeekKey")
	}
	return h
}

// WriteCSV writes a header row followed by one quoted record per line.
// Every value is quoted with internal quotes doubled; newlines inside
// strings become spaces; money has two decimals.
func WriteCSV(w io.Writer, lines []PayoutLine, opts ExportOptions) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(Header(opts), ",") + "\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, l := range lines {
		rec := []string{
			l.Name,
			l.EmployeeID,
			l.JobTitle,
			string(l.Team),
			string(l.ForTeam),
			l.Description,
			l.Amount.StringFixed(2),
			l.Revenue.StringFixed(2),
			l.TakeHome.StringFixed(2),
			l.BiWeekStart,
			l.BiWeekEnd,
		}
		if !opts.Legacy {
			rec = append(rec, l.BiWeekKey)
		}
		for i, v := range rec {
			rec[i] = quote(v)
		}
		if _, err := bw.WriteString(strings.Join(rec, ",") + "\n"); err != nil {
			return fmt.Errorf("write record %s: %w", l.ID, err)
		}
	}
	return bw.Flush()
}

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func quote(v string) string {
	v = flatten.Replace(v)
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// ExportFilename names the export for period p.
func ExportFilename(p calendar.BiWeek) string {
	return fmt.Sprintf("cfo_all_teams_%s_to_%s.csv", p.Start, p.End)
}
