// Package export writes the inspection list to spreadsheet files: .xlsx for
// current tools and .csv (UTF-8 with BOM or Big5) for legacy ones.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"github.com/kingrea/qc-desk/internal/inspection"
)

// Format selects the output file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Encoding selects the CSV character set.
type Encoding string

const (
	EncodingUTF8 Encoding = "utf-8"
	EncodingBig5 Encoding = "big5"
)

// SheetName is the worksheet holding the exported rows.
const SheetName = "品檢紀錄"

// Headers are the column titles, one column per exported value.
var Headers = []string{
	"日期", "時間", "銷售類別", "客戶", "製令單號",
	"作業員", "圖面版次", "檢驗員", "部門", "首件檢驗",
	"不良類別", "不良狀況", "對策",
}

var columnWidths = []float64{12, 8, 10, 14, 20, 10, 10, 10, 10, 10, 12, 24, 24}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat accepts "xlsx" or "csv" in any case.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatXLSX, "":
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("export: unknown format %q (want xlsx or csv)", value)
}

// ParseEncoding accepts "utf-8", "utf8" or "big5".
func ParseEncoding(value string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "big5":
		return EncodingBig5, nil
	}
	return "", fmt.Errorf("export: unknown csv encoding %q (want utf-8 or big5)", value)
}

// FileName builds a timestamped file name for format.
func FileName(format Format, now time.Time) string {
	return fmt.Sprintf("inspections_%s.%s", now.Format("20060102-150405"), format)
}

// Rows flattens records into table rows. A record yields one row per
// categorized defect, or a single row with blank defect columns when it has
// none. Dates and times are normalized into loc.
func Rows(records []inspection.Record, loc *time.Location) [][]string {
	var rows [][]string
	for _, rec := range records {
		base := []string{
			inspection.NormalizeDate(rec.Date, loc),
			inspection.NormalizeTime(rec.Time, loc),
			rec.SalesType.Label(),
			rec.Customer,
			rec.ProductionOrder,
			rec.Operator,
			rec.DrawingVersion,
			rec.Inspector,
			rec.Department.Display(),
			rec.FirstPieceInspection.Display(),
		}
		emitted := false
		for _, d := range rec.Defects {
			if !d.HasCategory() {
				continue
			}
			row := append(append([]string{}, base...), string(d.Category), d.Status, d.Countermeasure)
			rows = append(rows, row)
			emitted = true
		}
		if !emitted {
			rows = append(rows, append(append([]string{}, base...), "", "", ""))
		}
	}
	return rows
}

// WriteXLSX renders records as a single styled worksheet.
func WriteXLSX(w io.Writer, records []inspection.Record, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("export: header %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}

	for rowIdx, row := range Rows(records, loc) {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("export: row %d: %w", rowIdx+2, err)
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("export: column width %s: %w", col, err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

// WriteCSV renders records as CSV. UTF-8 output starts with a BOM so Excel
// picks the right code page; Big5 output replaces characters the code page
// cannot represent.
func WriteCSV(w io.Writer, records []inspection.Record, loc *time.Location, enc Encoding) error {
	buffered := bufio.NewWriter(w)
	var out io.Writer = buffered
	var closer io.Closer
	switch enc {
	case EncodingUTF8, "":
		if _, err := buffered.Write(utf8BOM); err != nil {
			return fmt.Errorf("export: write bom: %w", err)
		}
	case EncodingBig5:
		tw := transform.NewWriter(buffered, encoding.ReplaceUnsupported(traditionalchinese.Big5.NewEncoder()))
		out = tw
		closer = tw
	default:
		return fmt.Errorf("export: unknown csv encoding %q", enc)
	}

	cw := csv.NewWriter(out)
	cw.UseCRLF = true
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(records, loc)); err != nil {
		return fmt.Errorf("export: write csv rows: %w", err)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("export: flush encoder: %w", err)
		}
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

// Options describes one export run.
type Options struct {
	Format   Format
	Encoding Encoding
	Location *time.Location
}

// WriteFile writes records to path, creating parent directories.
func WriteFile(path string, records []inspection.Record, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: ensure dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	switch opts.Format {
	case FormatCSV:
		err = WriteCSV(file, records, opts.Location, opts.Encoding)
	default:
		err = WriteXLSX(file, records, opts.Location)
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("export: close %s: %w", path, cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
