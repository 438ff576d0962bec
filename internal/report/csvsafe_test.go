package report

import (
	"reflect"
	"testing"
)

func TestEscapeCSVCell(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"normal_text", "Nintendo Switch OLED", "Nintendo Switch OLED"},
		{"number", "123.45", "123.45"},
		{"hash", "#001", "#001"},
		{"internal_equal", "A=B", "A=B"},

		{"formula_equal", "=SUM(A1:A10)", "'=SUM(A1:A10)"},
		{"formula_plus", "+123", "'+123"},
		{"formula_minus", "-123", "'-123"},
		{"formula_at", "@SUM(A:A)", "'@SUM(A:A)"},
		{"formula_pipe", "|echo test", "'|echo test"},
		{"formula_percent", "%PATH%", "'%PATH%"},

		{"tab_start", "\t=EXEC()", "'\t=EXEC()"},
		{"newline_start", "\n=FORMULA()", "'\n=FORMULA()"},
		{"carriage_return", "\r=DATA()", "'\r=DATA()"},

		// negative price differences are quoted as well
		{"negative_difference", "-4.50", "'-4.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EscapeCSVCell(tt.input)
			if result != tt.expected {
				t.Errorf("EscapeCSVCell(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestEscapeCSVRow(t *testing.T) {
	input := []string{"Switch", "=SUM(A1:A10)", "100.50", "@malicious"}
	expected := []string{"Switch", "'=SUM(A1:A10)", "100.50", "'@malicious"}

	result := EscapeCSVRow(input)
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("EscapeCSVRow() = %v, want %v", result, expected)
	}
}

func BenchmarkEscapeCSVCell(b *testing.B) {
	testCases := []string{"Normal text", "=SUM(A1:A10)", "123.45", "-negative", "@formula"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = EscapeCSVCell(testCases[i%len(testCases)])
	}
}
