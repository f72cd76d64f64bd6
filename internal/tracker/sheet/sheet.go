// Package sheet reads uploaded CSV / Excel tables and writes CSV / Excel exports.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// 导出格式
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type, only .csv and .xlsx are accepted")
	ErrEmpty             = errors.New("file contains no header row")
)

// .xls (BIFF) 不支持，excelize 只读 OOXML
var supported = map[string]bool{".csv": true, ".xlsx": true}

// Ext returns the lower-cased extension of filename.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Supported reports whether filename has an accepted upload extension.
func Supported(filename string) bool {
	return supported[Ext(filename)]
}

// Row 一行数据，按表头名取值
type Row struct {
	Number int // 文件中的行号，表头为第 1 行
	Values map[string]string
}

// Get returns the trimmed value of column, "" when absent.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// Has reports whether the row holds a non-blank value for column.
func (r Row) Has(column string) bool {
	return r.Values[column] != ""
}

// Table 解析后的表格
type Table struct {
	Header []string
	Rows   []Row
}

// Missing lists the required columns absent from the header, in the order given.
func (t *Table) Missing(required ...string) []string {
	present := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// Read parses an uploaded CSV or Excel file. The first row is the header.
// Rows whose cells are all blank are skipped but still advance the row number.
func Read(filename string, data []byte) (*Table, error) {
	var records [][]string
	var err error
	switch Ext(filename) {
	case ".csv":
		records, err = readCSV(data)
	case ".xlsx":
		records, err = readExcel(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return toTable(records)
}

// DecodeText converts CSV bytes to UTF-8: a UTF-8 BOM is stripped, and input that is not
// valid UTF-8 is decoded as EUC-KR.
func DecodeText(data []byte) ([]byte, error) {
	var dec transform.Transformer = unicode.UTF8BOM.NewDecoder()
	if !utf8.Valid(data) {
		dec = korean.EUCKR.NewDecoder()
	}
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return out, nil
}

func readCSV(data []byte) ([][]string, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

func readExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	return rows, nil
}

func toTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{Header: header}
	for i, rec := range records[1:] {
		values := make(map[string]string, len(header))
		empty := true
		for j, col := range header {
			if col == "" || j >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[j])
			if v != "" {
				empty = false
			}
			values[col] = v
		}
		if empty {
			continue
		}
		t.Rows = append(t.Rows, Row{Number: i + 2, Values: values})
	}
	return t, nil
}

// ContentType 导出格式对应的 Content-Type
func ContentType(format string) string {
	if format == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeCSV
}

// NormalizeFormat maps a format query value to FormatCSV or FormatXLSX.
func NormalizeFormat(format string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		return FormatCSV, true
	case FormatXLSX, "excel":
		return FormatXLSX, true
	}
	return "", false
}

// Write renders header and rows in the requested format.
func Write(w io.Writer, format, sheetName string, header []string, rows [][]string) error {
	if format == FormatXLSX {
		return WriteXLSX(w, sheetName, header, rows)
	}
	return WriteCSV(w, header, rows)
}

// WriteCSV writes UTF-8 CSV with a leading byte-order mark so spreadsheet programs detect the encoding.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return tw.Close()
}

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, sheetName string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	widths := make([]int, len(header))
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, boldStyle)
		widths[i] = utf8.RuneCountInString(h)
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheetName, cell, v)
			if c < len(widths) && utf8.RuneCountInString(v) > widths[c] {
				widths[c] = utf8.RuneCountInString(v)
			}
		}
	}

	// 列宽按内容估算，上限 50
	for i, n := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, float64(min(n+4, 50)))
	}

	return f.Write(w)
}
