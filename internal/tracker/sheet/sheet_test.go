package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

func TestReadCSVWithBOM(t *testing.T) {
	data := []byte("\xEF\xBB\xBFproject, stage ,task_item\nAlpha,설계,API\n,,\nBeta,개발, DB \n")

	table, err := Read("tasks.CSV", data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := strings.Join(table.Header, "|"); got != "project|stage|task_item" {
		t.Fatalf("Unexpected header %q", got)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	// 空行被跳过，但行号保持文件中的位置
	if table.Rows[0].Number != 2 || table.Rows[1].Number != 4 {
		t.Errorf("Unexpected row numbers %d, %d", table.Rows[0].Number, table.Rows[1].Number)
	}
	if table.Rows[1].Get("task_item") != "DB" {
		t.Errorf("Expected trimmed value, got %q", table.Rows[1].Get("task_item"))
	}
	if missing := table.Missing("project", "stage", "task_item", "assignee"); len(missing) != 1 || missing[0] != "assignee" {
		t.Errorf("Unexpected missing columns %v", missing)
	}
}

func TestReadCSVEUCKR(t *testing.T) {
	utf := "project,stage,task_item\n알파,설계,요구사항 정리\n"
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte(utf))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	table, err := Read("legacy.csv", encoded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(table.Rows))
	}
	if got := table.Rows[0].Get("task_item"); got != "요구사항 정리" {
		t.Errorf("Expected decoded Korean text, got %q", got)
	}
}

func TestReadUnsupported(t *testing.T) {
	if _, err := Read("notes.txt", []byte("a,b")); err != ErrUnsupportedFormat {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if Supported("plan.json") {
		t.Error("json should not be supported")
	}
	if !Supported("Plan.XLSX") {
		t.Error("xlsx should be supported regardless of case")
	}

	// 旧版 BIFF 文件头
	legacy := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	if Supported("plan.xls") {
		t.Error("xls should not be supported")
	}
	if _, err := Read("plan.xls", legacy); err != ErrUnsupportedFormat {
		t.Errorf("Expected ErrUnsupportedFormat for xls, got %v", err)
	}
}

func TestReadEmptyCSV(t *testing.T) {
	if _, err := Read("empty.csv", nil); err != ErrEmpty {
		t.Fatalf("Expected ErrEmpty, got %v", err)
	}
}

func TestWriteCSVHasBOM(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []string{"name", "status"}, [][]string{{"알파", "active"}}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("\xEF\xBB\xBF")) {
		t.Fatalf("Expected UTF-8 BOM prefix, got % x", out[:3])
	}
	if !strings.Contains(string(out), "알파,active") {
		t.Errorf("Unexpected body %q", out)
	}
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	header := []string{"project", "stage", "task_item"}
	rows := [][]string{{"Alpha", "설계", "API"}, {"Beta", "개발", "DB"}}
	if err := WriteXLSX(&buf, "Tasks", header, rows); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if name := f.GetSheetName(0); name != "Tasks" {
		t.Errorf("Expected sheet Tasks, got %s", name)
	}

	table, err := Read("tasks.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[1].Get("task_item") != "DB" {
		t.Errorf("Unexpected rows %+v", table.Rows)
	}
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", FormatCSV, true},
		{"CSV", FormatCSV, true},
		{"xlsx", FormatXLSX, true},
		{"json", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeFormat(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeFormat(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
