package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type fruit struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

type fruits []fruit

func (f fruits) Table() *Table {
	t := NewTable("NAME", "COUNT")
	for _, x := range f {
		t.AddRow(x.Name, strings.Repeat("*", x.Count))
	}
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("json: wrong formatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("yaml: wrong formatter")
	}
	if _, ok := NewFormatter("other").(*TableFormatter); !ok {
		t.Error("default: wrong formatter")
	}
}

func TestTableFormatter(t *testing.T) {
	data := fruits{{Name: "apple", Count: 3}, {Name: "", Count: 1}}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "COUNT") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "-") {
		t.Errorf("empty cell not rendered as '-': %q", lines[2])
	}

	buf.Reset()
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(buf.String(), "NAME") {
		t.Error("NoHeaders still printed headers")
	}
}

func TestTableFormatter_FallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"a": 1`) {
		t.Errorf("output = %q, want JSON", buf.String())
	}
}

func TestJSONAndYAML(t *testing.T) {
	data := fruit{Name: "pear", Count: 2}

	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("JSON Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"name": "pear"`) {
		t.Errorf("json = %q", buf.String())
	}

	buf.Reset()
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("YAML Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "name: pear") || !strings.Contains(buf.String(), "count: 2") {
		t.Errorf("yaml = %q", buf.String())
	}
}

func TestFormatTime(t *testing.T) {
	if got := FormatTime(time.Time{}); got != "-" {
		t.Errorf("FormatTime(zero) = %q", got)
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := FormatTime(ts); got != "2024-01-02T03:04:05Z" {
		t.Errorf("FormatTime() = %q", got)
	}
}
