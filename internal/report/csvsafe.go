package report

// formulaPrefixes start a cell that spreadsheets evaluate as a formula.
const formulaPrefixes = "=+-@|%\t\r\n"

// EscapeCSVCell protects against CSV formula injection by quoting cells
// that start with a formula indicator.
func EscapeCSVCell(value string) string {
	if value == "" {
		return value
	}
	for i := 0; i < len(formulaPrefixes); i++ {
		if value[0] == formulaPrefixes[i] {
			return "'" + value
		}
	}
	return value
}

// EscapeCSVRow escapes all cells in a row
func EscapeCSVRow(row []string) []string {
	escaped := make([]string, len(row))
	for i, cell := range row {
		escaped[i] = EscapeCSVCell(cell)
	}
	return escaped
}
