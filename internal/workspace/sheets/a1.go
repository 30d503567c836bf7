package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/sheets/v4"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// Unbounded marks an open side of an A1Range.
const Unbounded = -1

// A1Range is a parsed A1 notation range. Indices are zero-based and end
// indices are exclusive, matching the API's GridRange.
type A1Range struct {
	Sheet       string
	StartRow    int
	EndRow      int
	StartColumn int
	EndColumn   int
}

// ParseA1Range parses ranges such as "Sheet1!A1:C10", "'My Sheet'!B:B",
// "2:5", "A1" or a bare sheet name. Text without a "!" that is not a cell
// reference is taken as a sheet name covering the whole sheet.
func ParseA1Range(s string) (A1Range, error) {
	r := A1Range{StartRow: Unbounded, EndRow: Unbounded, StartColumn: Unbounded, EndColumn: Unbounded}
	s = strings.TrimSpace(s)
	if s == "" {
		return r, fmt.Errorf("empty range: %w", domain.ErrInvalidInput)
	}

	cells := s
	if i := strings.LastIndex(s, "!"); i >= 0 {
		r.Sheet = unquoteSheet(s[:i])
		cells = s[i+1:]
	} else if !isCellRange(s) {
		r.Sheet = unquoteSheet(s)
		return r, nil
	}
	if cells == "" {
		return r, nil
	}

	start, end, found := strings.Cut(cells, ":")
	if !found {
		end = start
	}
	startCol, startRow, err := parseCell(start)
	if err != nil {
		return r, fmt.Errorf("range %q: %w", s, err)
	}
	endCol, endRow, err := parseCell(end)
	if err != nil {
		return r, fmt.Errorf("range %q: %w", s, err)
	}

	if startCol != Unbounded {
		r.StartColumn = startCol
	}
	if endCol != Unbounded {
		r.EndColumn = endCol + 1
	}
	if startRow != Unbounded {
		r.StartRow = startRow
	}
	if endRow != Unbounded {
		r.EndRow = endRow + 1
	}
	if (r.EndColumn != Unbounded && r.StartColumn > r.EndColumn-1) ||
		(r.EndRow != Unbounded && r.StartRow > r.EndRow-1) {
		return r, fmt.Errorf("range %q ends before it starts: %w", s, domain.ErrInvalidInput)
	}
	return r, nil
}

// GridRange converts the range to the API form for sheetID. Open sides are
// left unset so the API treats them as unbounded.
func (r A1Range) GridRange(sheetID int64) *sheets.GridRange {
	g := &sheets.GridRange{SheetId: sheetID, ForceSendFields: []string{"SheetId"}}
	if r.StartRow != Unbounded {
		g.StartRowIndex = int64(r.StartRow)
		g.ForceSendFields = append(g.ForceSendFields, "StartRowIndex")
	}
	if r.EndRow != Unbounded {
		g.EndRowIndex = int64(r.EndRow)
		g.ForceSendFields = append(g.ForceSendFields, "EndRowIndex")
	}
	if r.StartColumn != Unbounded {
		g.StartColumnIndex = int64(r.StartColumn)
		g.ForceSendFields = append(g.ForceSendFields, "StartColumnIndex")
	}
	if r.EndColumn != Unbounded {
		g.EndColumnIndex = int64(r.EndColumn)
		g.ForceSendFields = append(g.ForceSendFields, "EndColumnIndex")
	}
	return g
}

// ColumnLetter converts a zero-based column index to letters: 0 is A,
// 26 is AA.
func ColumnLetter(index int) string {
	var b []byte
	for index >= 0 {
		b = append([]byte{byte('A' + index%26)}, b...)
		index = index/26 - 1
	}
	return string(b)
}

// parseCell splits a reference like "AB12" into zero-based column and row.
// Either part may be missing and is then Unbounded.
func parseCell(ref string) (col, row int, err error) {
	ref = strings.ReplaceAll(strings.ToUpper(ref), "$", "")
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	letters, digits := ref[:i], ref[i:]
	if letters == "" && digits == "" {
		return 0, 0, fmt.Errorf("empty cell reference: %w", domain.ErrInvalidInput)
	}

	col, row = Unbounded, Unbounded
	if letters != "" {
		col = 0
		for _, c := range letters {
			col = col*26 + int(c-'A'+1)
		}
		col--
	}
	if digits != "" {
		n, convErr := strconv.Atoi(digits)
		if convErr != nil || n < 1 {
			return 0, 0, fmt.Errorf("bad row in %q: %w", ref, domain.ErrInvalidInput)
		}
		row = n - 1
	}
	return col, row, nil
}

func isCellRange(s string) bool {
	start, end, found := strings.Cut(s, ":")
	if !isCellRef(start) {
		return false
	}
	return !found || isCellRef(end)
}

// isCellRef reports whether s looks like A1, A, 1 or $A$1.
func isCellRef(s string) bool {
	s = strings.ReplaceAll(s, "$", "")
	if s == "" {
		return false
	}
	i := 0
	for i < len(s) && (s[i] >= 'A' && s[i] <= 'Z' || s[i] >= 'a' && s[i] <= 'z') {
		i++
	}
	if i > 3 {
		return false
	}
	for _, c := range s[i:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func unquoteSheet(name string) string {
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		return strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}
