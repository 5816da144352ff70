package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"scanlog/internal/models"
)

// Header is the first line of every export. The byte layout of the file is
// fixed: barcode and timestamp always quoted, quantity bare, LF after every
// line. encoding/csv is not used for writing because it only quotes fields
// that need it.
const Header = "Barcode,Total Quantity,Last Scan Date"

const timestampLayout = "2006-01-02 15:04:05"

// RenderCSV turns aggregated rows into the export file bytes. Output is
// deterministic for a given row sequence.
func RenderCSV(rows []models.AggregatedScanRow) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteByte('\n')

	for _, row := range rows {
		buf.WriteString(fmt.Sprintf("%s,%d,%s\n",
			quote(row.Barcode),
			row.TotalQuantity,
			quote(row.LastScanAt.Format(timestampLayout)),
		))
	}

	return buf.Bytes()
}

// Filename names an export after the moment it was requested.
func Filename(now time.Time) string {
	return fmt.Sprintf("scans_%s.csv", now.Format("20060102_150405"))
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
