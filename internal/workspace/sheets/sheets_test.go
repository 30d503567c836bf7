package sheets

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

func newTestService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	svc, err := New(context.Background(), workspacetest.Limiter(workspace.ServiceSheets), workspacetest.Server(t, mux)...)
	require.NoError(t, err)
	return svc
}

// spreadsheetWithSheets answers spreadsheets.get with two sheets.
func spreadsheetWithSheets(w http.ResponseWriter, _ *http.Request) {
	workspacetest.JSON(w, map[string]any{
		"spreadsheetId": "s1",
		"sheets": []map[string]any{
			{"properties": map[string]any{"sheetId": 0, "title": "Summary"}},
			{"properties": map[string]any{"sheetId": 42, "title": "Data"}},
		},
	})
}

// captureBatch records batchUpdate requests.
func captureBatch(t *testing.T, got *sheets.BatchUpdateSpreadsheetRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":batchUpdate"))
		*got = sheets.BatchUpdateSpreadsheetRequest{}
		workspacetest.Decode(t, r, got)
		workspacetest.JSON(w, map[string]any{"spreadsheetId": "s1", "replies": []any{map[string]any{}}})
	}
}

func TestCreateSpreadsheet(t *testing.T) {
	var got sheets.Spreadsheet
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v4/spreadsheets", func(w http.ResponseWriter, r *http.Request) {
		workspacetest.Decode(t, r, &got)
		workspacetest.JSON(w, map[string]any{"spreadsheetId": "s1"})
	})
	svc := newTestService(t, mux)

	ss, err := svc.CreateSpreadsheet(context.Background(), "Budget", "Q1", "Q2")

	require.NoError(t, err)
	assert.Equal(t, "s1", ss.SpreadsheetId)
	assert.Equal(t, "Budget", got.Properties.Title)
	require.Len(t, got.Sheets, 2)
	assert.Equal(t, "Q2", got.Sheets[1].Properties.Title)

	_, err = svc.CreateSpreadsheet(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetSpreadsheet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/spreadsheets/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("includeGridData"))
		assert.Equal(t, []string{"Data!A1:B2"}, r.URL.Query()["ranges"])
		spreadsheetWithSheets(w, r)
	})
	svc := newTestService(t, mux)

	ss, err := svc.GetSpreadsheet(context.Background(), "s1", true, "Data!A1:B2")

	require.NoError(t, err)
	assert.Len(t, ss.Sheets, 2)
}

func TestValuesOperations(t *testing.T) {
	var written sheets.ValueRange
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/s1/values/{rng}", func(w http.ResponseWriter, r *http.Request) {
		rng := r.PathValue("rng")
		q := r.URL.Query()
		switch {
		case r.Method == http.MethodGet:
			assert.Equal(t, "Data!A1:B2", rng)
			assert.Equal(t, MajorRows, q.Get("majorDimension"))
			workspacetest.JSON(w, map[string]any{"range": rng, "values": [][]string{{"a", "b"}, {"1", "2"}}})
		case r.Method == http.MethodPut:
			assert.Equal(t, InputRaw, q.Get("valueInputOption"))
			workspacetest.Decode(t, r, &written)
			workspacetest.JSON(w, map[string]any{"updatedCells": 4})
		case strings.HasSuffix(rng, ":append"):
			assert.Equal(t, InputUserEntered, q.Get("valueInputOption"))
			assert.Equal(t, InsertRows, q.Get("insertDataOption"))
			workspacetest.JSON(w, map[string]any{"updates": map[string]any{"updatedRows": 1}})
		case strings.HasSuffix(rng, ":clear"):
			workspacetest.JSON(w, map[string]any{"clearedRange": strings.TrimSuffix(rng, ":clear")})
		default:
			t.Errorf("unexpected request %s %s", r.Method, rng)
		}
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	vr, err := svc.GetValues(ctx, "s1", "Data!A1:B2", "")
	require.NoError(t, err)
	assert.Len(t, vr.Values, 2)

	upd, err := svc.UpdateValues(ctx, "s1", "Data!A1:B2", [][]any{{"x", 1}, {"y", 2}}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), upd.UpdatedCells)
	assert.Len(t, written.Values, 2)

	app, err := svc.AppendValues(ctx, "s1", "Data!A1", [][]any{{"z", 3}}, InputUserEntered, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), app.Updates.UpdatedRows)

	cleared, err := svc.ClearValues(ctx, "s1", "Data!A1:B2")
	require.NoError(t, err)
	assert.Equal(t, "Data!A1:B2", cleared.ClearedRange)
}

func TestFormatCells_UsesParsedRange(t *testing.T) {
	var got sheets.BatchUpdateSpreadsheetRequest
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/spreadsheets/s1", spreadsheetWithSheets)
	mux.HandleFunc("POST /v4/spreadsheets/{call}", captureBatch(t, &got))
	svc := newTestService(t, mux)

	_, err := svc.FormatCells(context.Background(), "s1", "Data!B2:C4", &sheets.CellFormat{
		TextFormat: &sheets.TextFormat{Bold: true},
	})

	require.NoError(t, err)
	require.Len(t, got.Requests, 1)
	rc := got.Requests[0].RepeatCell
	require.NotNil(t, rc)
	assert.Equal(t, "userEnteredFormat", rc.Fields)
	assert.Equal(t, int64(42), rc.Range.SheetId)
	assert.Equal(t, int64(1), rc.Range.StartRowIndex)
	assert.Equal(t, int64(4), rc.Range.EndRowIndex)
	assert.Equal(t, int64(1), rc.Range.StartColumnIndex)
	assert.Equal(t, int64(3), rc.Range.EndColumnIndex)
	assert.True(t, rc.Cell.UserEnteredFormat.TextFormat.Bold)
}

func TestSheetIDForRange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/spreadsheets/s1", spreadsheetWithSheets)
	svc := newTestService(t, mux)

	tests := []struct {
		rng  string
		want int64
	}{
		{"Data!A1", 42},
		{"Summary!A1:B2", 0},
		{"Unknown!A1", 0},
		{"A1:B2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.rng, func(t *testing.T) {
			id, err := svc.SheetIDForRange(context.Background(), "s1", tt.rng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestStructuralRequests(t *testing.T) {
	var got sheets.BatchUpdateSpreadsheetRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v4/spreadsheets/{call}", captureBatch(t, &got))
	svc := newTestService(t, mux)
	ctx := context.Background()

	_, err := svc.AddSheet(ctx, "s1", "Archive", &sheets.GridProperties{RowCount: 10, ColumnCount: 5})
	require.NoError(t, err)
	assert.Equal(t, "Archive", got.Requests[0].AddSheet.Properties.Title)

	_, err = svc.DeleteSheet(ctx, "s1", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Requests[0].DeleteSheet.SheetId)

	_, err = svc.SetColumnWidth(ctx, "s1", 0, 0, 3, 120)
	require.NoError(t, err)
	dim := got.Requests[0].UpdateDimensionProperties
	assert.Equal(t, "COLUMNS", dim.Range.Dimension)
	assert.Equal(t, int64(120), dim.Properties.PixelSize)

	_, err = svc.SetRowHeight(ctx, "s1", 0, 1, 2, 40)
	require.NoError(t, err)
	assert.Equal(t, "ROWS", got.Requests[0].UpdateDimensionProperties.Range.Dimension)

	_, err = svc.MergeCells(ctx, "s1", 0, 0, 2, 0, 2, "")
	require.NoError(t, err)
	assert.Equal(t, MergeAll, got.Requests[0].MergeCells.MergeType)
}

func TestResize_InvalidRange(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.SetColumnWidth(context.Background(), "s1", 0, 3, 3, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SetRowHeight(context.Background(), "s1", 0, 0, 2, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBatchUpdate_RequiresRequests(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.BatchUpdate(context.Background(), "s1")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
