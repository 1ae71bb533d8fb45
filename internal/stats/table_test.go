package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Strategy", "Accuracy", "Tries"}
	rows := [][]string{
		{"add_basic", "97.50%", "12"},
		{"6 × 7", "8.00%", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0] != "Strategy  Accuracy Tries" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if displayWidth(lines[1]) != displayWidth(lines[0]) {
		t.Fatalf("rule width %d does not match header width %d", displayWidth(lines[1]), displayWidth(lines[0]))
	}
	if lines[2] != "add_basic   97.50%    12" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
	if lines[3] != "6 × 7        8.00%     3" {
		t.Fatalf("unexpected row line: %q", lines[3])
	}
}
