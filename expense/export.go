package expense

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

var header = []string{"id", "category", "date", "vendor", "description", "amount", "createdByEmail"}

// WriteCSV writes a header row followed by one record per expense. Every
// value is quoted with internal quotes doubled, description newlines become
// spaces and amounts have two decimals.
func WriteCSV(w io.Writer, list []Expense) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(header, ",") + "\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range list {
		day := ""
		if !e.Date.IsZero() {
			day = e.Date.String()
		}
		rec := []string{
			e.ID,
			string(e.Category),
			day,
			e.Vendor,
			flatten.Replace(e.Description),
			e.Amount.StringFixed(2),
			e.CreatedByEmail,
		}
		for i, v := range rec {
			rec[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
		}
		if _, err := bw.WriteString(strings.Join(rec, ",") + "\n"); err != nil {
			return fmt.Errorf("write expense %s: %w", e.ID, err)
		}
	}
	return bw.Flush()
}

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// ExportFilename names the export taken on day.
func ExportFilename(day calendar.Date) string {
	return fmt.Sprintf("expenses_all_%s.csv", day)
}
