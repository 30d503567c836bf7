package docs

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/docs/v1"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace"
	"github.com/custodia-labs/gspace/internal/workspace/drive"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

func newTestService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	opts := workspacetest.Server(t, mux)
	files, err := drive.New(context.Background(), workspacetest.Limiter(workspace.ServiceDrive), opts...)
	require.NoError(t, err)
	svc, err := New(context.Background(), workspacetest.Limiter(workspace.ServiceDocs), files, opts...)
	require.NoError(t, err)
	return svc
}

// captureBatch records the last documents.batchUpdate body.
func captureBatch(t *testing.T, got *docs.BatchUpdateDocumentRequest) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/documents/{call}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "d1:batchUpdate", r.PathValue("call"))
		*got = docs.BatchUpdateDocumentRequest{}
		workspacetest.Decode(t, r, got)
		workspacetest.JSON(w, map[string]any{"documentId": "d1"})
	})
	return mux
}

func TestCreateAndGetDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/documents", func(w http.ResponseWriter, r *http.Request) {
		var doc docs.Document
		workspacetest.Decode(t, r, &doc)
		workspacetest.JSON(w, map[string]any{"documentId": "d1", "title": doc.Title})
	})
	mux.HandleFunc("GET /v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultSuggestionsViewMode, r.URL.Query().Get("suggestionsViewMode"))
		workspacetest.JSON(w, map[string]any{"documentId": r.PathValue("id"), "title": "Notes"})
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	created, err := svc.CreateDocument(ctx, "Notes")
	require.NoError(t, err)
	assert.Equal(t, "d1", created.DocumentId)
	assert.Equal(t, "Notes", created.Title)

	got, err := svc.GetDocument(ctx, "d1", "")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DocumentId)

	_, err = svc.CreateDocument(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.GetDocument(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetDocument_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.Error(w, http.StatusNotFound, "Requested entity was not found.")
	})
	svc := newTestService(t, mux)

	_, err := svc.GetDocument(context.Background(), "missing", "")

	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestEditRequests(t *testing.T) {
	var got docs.BatchUpdateDocumentRequest
	svc := newTestService(t, captureBatch(t, &got))
	ctx := context.Background()

	_, err := svc.InsertText(ctx, "d1", 1, "Hello")
	require.NoError(t, err)
	require.Len(t, got.Requests, 1)
	assert.Equal(t, "Hello", got.Requests[0].InsertText.Text)
	assert.Equal(t, int64(1), got.Requests[0].InsertText.Location.Index)

	_, err = svc.DeleteContent(ctx, "d1", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Requests[0].DeleteContentRange.Range.EndIndex)

	_, err = svc.ReplaceAllText(ctx, "d1", "{{name}}", "Ada")
	require.NoError(t, err)
	rep := got.Requests[0].ReplaceAllText
	assert.Equal(t, "{{name}}", rep.ContainsText.Text)
	assert.True(t, rep.ContainsText.MatchCase)
	assert.Equal(t, "Ada", rep.ReplaceText)

	_, err = svc.InsertTable(ctx, "d1", 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Requests[0].InsertTable.Rows)
	assert.Equal(t, int64(3), got.Requests[0].InsertTable.Columns)

	_, err = svc.InsertPageBreak(ctx, "d1", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Requests[0].InsertPageBreak.Location.Index)

	_, err = svc.InsertSectionBreak(ctx, "d1", 4, "")
	require.NoError(t, err)
	assert.Equal(t, SectionNextPage, got.Requests[0].InsertSectionBreak.SectionType)

	_, err = svc.UpdateParagraphStyle(ctx, "d1", 1, 6, StyleHeading1)
	require.NoError(t, err)
	ps := got.Requests[0].UpdateParagraphStyle
	assert.Equal(t, StyleHeading1, ps.ParagraphStyle.NamedStyleType)
	assert.Equal(t, "namedStyleType", ps.Fields)
}

func TestTableRowRequests(t *testing.T) {
	var got docs.BatchUpdateDocumentRequest
	svc := newTestService(t, captureBatch(t, &got))
	cell := CellLocation{TableStart: 2, Row: 0, Column: 0}

	_, err := svc.InsertTableRow(context.Background(), "d1", cell, true)
	require.NoError(t, err)
	loc := got.Requests[0].InsertTableRow.TableCellLocation
	assert.Equal(t, int64(2), loc.TableStartLocation.Index)
	assert.True(t, got.Requests[0].InsertTableRow.InsertBelow)

	_, err = svc.DeleteTableRow(context.Background(), "d1", CellLocation{TableStart: 2, Row: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Requests[0].DeleteTableRow.TableCellLocation.RowIndex)
}

func TestInsertImage(t *testing.T) {
	var got docs.BatchUpdateDocumentRequest
	svc := newTestService(t, captureBatch(t, &got))
	ctx := context.Background()

	_, err := svc.InsertImage(ctx, "d1", 1, "https://example.com/a.png", 0, 0)
	require.NoError(t, err)
	assert.Nil(t, got.Requests[0].InsertInlineImage.ObjectSize)

	_, err = svc.InsertImage(ctx, "d1", 1, "https://example.com/a.png", 200, 100)
	require.NoError(t, err)
	size := got.Requests[0].InsertInlineImage.ObjectSize
	require.NotNil(t, size)
	assert.InDelta(t, 200, size.Width.Magnitude, 0)
	assert.Equal(t, "PT", size.Height.Unit)

	_, err = svc.InsertImage(ctx, "d1", 1, "", 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateTextStyle(t *testing.T) {
	var got docs.BatchUpdateDocumentRequest
	svc := newTestService(t, captureBatch(t, &got))
	yes, no := true, false

	_, err := svc.UpdateTextStyle(context.Background(), "d1", 1, 5, TextStyle{Bold: &yes, Italic: &no, FontSize: 14})

	require.NoError(t, err)
	req := got.Requests[0].UpdateTextStyle
	assert.Equal(t, "bold,italic,fontSize", req.Fields)
	assert.True(t, req.TextStyle.Bold)
	assert.False(t, req.TextStyle.Italic)
	assert.InDelta(t, 14, req.TextStyle.FontSize.Magnitude, 0)
}

func TestTextStyle_ExplicitFalseIsSent(t *testing.T) {
	no := false
	style, fields := TextStyle{Underline: &no}.build()

	data, err := style.MarshalJSON()

	require.NoError(t, err)
	assert.Equal(t, "underline", fields)
	assert.JSONEq(t, `{"underline":false}`, string(data))
}

func TestInvalidEdits(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())
	ctx := context.Background()

	tests := map[string]func() error{
		"empty batch": func() error { _, err := svc.BatchUpdate(ctx, "d1"); return err },
		"index zero":  func() error { _, err := svc.InsertText(ctx, "d1", 0, "x"); return err },
		"empty range": func() error { _, err := svc.DeleteContent(ctx, "d1", 5, 5); return err },
		"no fields":   func() error { _, err := svc.UpdateTextStyle(ctx, "d1", 1, 2, TextStyle{}); return err },
		"no style":    func() error { _, err := svc.UpdateParagraphStyle(ctx, "d1", 1, 2, ""); return err },
		"zero rows":   func() error { _, err := svc.InsertTable(ctx, "d1", 1, 0, 2); return err },
		"empty find":  func() error { _, err := svc.ReplaceAllText(ctx, "d1", "", "x"); return err },
	}
	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), domain.ErrInvalidInput)
		})
	}
}

func TestCommentsAndRevisionsUseDrive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /files/d1/comments", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{"id": "c1", "content": "nice"})
	})
	mux.HandleFunc("GET /files/d1/revisions", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{"revisions": []map[string]string{{"id": "1"}}})
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	c, err := svc.CreateComment(ctx, "d1", "nice", "")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.Id)

	revs, err := svc.GetRevisions(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, revs, 1)
}

func TestPlainText(t *testing.T) {
	para := func(texts ...string) *docs.StructuralElement {
		p := &docs.Paragraph{}
		for _, s := range texts {
			p.Elements = append(p.Elements, &docs.ParagraphElement{TextRun: &docs.TextRun{Content: s}})
		}
		return &docs.StructuralElement{Paragraph: p}
	}
	doc := &docs.Document{Body: &docs.Body{Content: []*docs.StructuralElement{
		{SectionBreak: &docs.SectionBreak{}},
		para("Title", "\n"),
		{Table: &docs.Table{TableRows: []*docs.TableRow{{
			TableCells: []*docs.TableCell{
				{Content: []*docs.StructuralElement{para("a\n")}},
				{Content: []*docs.StructuralElement{para("b\n")}},
			},
		}}}},
		para("End\n"),
	}}}

	assert.Equal(t, "Title\na\nb\nEnd\n", PlainText(doc))
	assert.Empty(t, PlainText(nil))
	assert.Empty(t, PlainText(&docs.Document{}))
}

func TestWebURL(t *testing.T) {
	assert.Equal(t, "https://docs.google.com/document/d/d1/edit", WebURL("d1"))
	assert.Empty(t, WebURL(""))
}
