// Package docs wraps the Google Docs API. Comments and revisions live in
// the Drive API and are reached through the Drive wrapper.
package docs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/docs/v1"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
	"github.com/custodia-labs/gspace/internal/workspace/drive"
)

// Named paragraph styles and document defaults.
const (
	StyleNormalText = "NORMAL_TEXT"
	StyleTitle      = "TITLE"
	StyleHeading1   = "HEADING_1"
	StyleHeading2   = "HEADING_2"
	StyleHeading3   = "HEADING_3"

	// DefaultSuggestionsViewMode shows suggestions as the caller's access
	// level allows.
	DefaultSuggestionsViewMode = "DEFAULT_FOR_CURRENT_ACCESS"
	// SectionNextPage starts the new section on the next page.
	SectionNextPage = "NEXT_PAGE"

	pointUnit = "PT"
)

// Service is a rate-limited Docs client.
type Service struct {
	api     *docs.Service
	files   *drive.Service
	limiter *workspace.APILimiter
	log     zerolog.Logger
}

// New creates a Docs service. files is used for comments and revisions; when
// nil a Drive wrapper is built from opts. A nil limiter gets the default
// budget.
func New(ctx context.Context, limiter *workspace.APILimiter, files *drive.Service, opts ...option.ClientOption) (*Service, error) {
	api, err := workspace.NewDocsService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create docs service: %w", err)
	}
	if files == nil {
		files, err = drive.New(ctx, nil, opts...)
		if err != nil {
			return nil, err
		}
	}
	if limiter == nil {
		limiter = workspace.DefaultAPILimiter(workspace.ServiceDocs)
	}
	return &Service{
		api:     api,
		files:   files,
		limiter: limiter,
		log:     logger.WithComponent("gspace.docs"),
	}, nil
}

// API returns the underlying Docs client.
func (s *Service) API() *docs.Service {
	return s.api
}

// CreateDocument creates an empty document.
func (s *Service) CreateDocument(ctx context.Context, title string) (*docs.Document, error) {
	if title == "" {
		return nil, fmt.Errorf("document title: %w", domain.ErrInvalidInput)
	}
	doc, err := workspace.Call(ctx, s.limiter, "documents.create", func(ctx context.Context) (*docs.Document, error) {
		return s.api.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.log.Info().Str("document_id", doc.DocumentId).Msg("created document")
	return doc, nil
}

// GetDocument fetches a document. An empty mode uses
// DefaultSuggestionsViewMode.
func (s *Service) GetDocument(ctx context.Context, documentID, suggestionsViewMode string) (*docs.Document, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id: %w", domain.ErrInvalidInput)
	}
	if suggestionsViewMode == "" {
		suggestionsViewMode = DefaultSuggestionsViewMode
	}
	doc, err := workspace.Call(ctx, s.limiter, "documents.get", func(ctx context.Context) (*docs.Document, error) {
		return s.api.Documents.Get(documentID).SuggestionsViewMode(suggestionsViewMode).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return doc, nil
}

// BatchUpdate applies requests in order as one atomic edit.
func (s *Service) BatchUpdate(ctx context.Context, documentID string, requests ...*docs.Request) (*docs.BatchUpdateDocumentResponse, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("batch update without requests: %w", domain.ErrInvalidInput)
	}
	req := &docs.BatchUpdateDocumentRequest{Requests: requests}
	resp, err := workspace.Call(ctx, s.limiter, "documents.batchUpdate", func(ctx context.Context) (*docs.BatchUpdateDocumentResponse, error) {
		return s.api.Documents.BatchUpdate(documentID, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("batch update %s: %w", documentID, err)
	}
	s.log.Debug().Int("requests", len(requests)).Str("document_id", documentID).Msg("applied batch update")
	return resp, nil
}

// InsertText inserts text at a body index. The body starts at index 1.
func (s *Service) InsertText(ctx context.Context, documentID string, index int64, text string) (*docs.BatchUpdateDocumentResponse, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		InsertText: &docs.InsertTextRequest{Location: location(index), Text: text},
	})
}

// DeleteContent deletes the content in [start, end).
func (s *Service) DeleteContent(ctx context.Context, documentID string, start, end int64) (*docs.BatchUpdateDocumentResponse, error) {
	r, err := textRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		DeleteContentRange: &docs.DeleteContentRangeRequest{Range: r},
	})
}

// ReplaceAllText replaces every occurrence of find. The match is case
// sensitive.
func (s *Service) ReplaceAllText(ctx context.Context, documentID, find, replace string) (*docs.BatchUpdateDocumentResponse, error) {
	if find == "" {
		return nil, fmt.Errorf("replace text: %w", domain.ErrInvalidInput)
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		ReplaceAllText: &docs.ReplaceAllTextRequest{
			ContainsText: &docs.SubstringMatchCriteria{Text: find, MatchCase: true},
			ReplaceText:  replace,
		},
	})
}

// InsertTable inserts an empty rows by columns table at index.
func (s *Service) InsertTable(ctx context.Context, documentID string, index, rows, columns int64) (*docs.BatchUpdateDocumentResponse, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if rows < 1 || columns < 1 {
		return nil, fmt.Errorf("table of %dx%d: %w", rows, columns, domain.ErrInvalidInput)
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		InsertTable: &docs.InsertTableRequest{Location: location(index), Rows: rows, Columns: columns},
	})
}

// CellLocation addresses a cell of the table starting at TableStart.
type CellLocation struct {
	TableStart int64
	Row        int64
	Column     int64
}

func (c CellLocation) api() *docs.TableCellLocation {
	return &docs.TableCellLocation{
		TableStartLocation: location(c.TableStart),
		RowIndex:           c.Row,
		ColumnIndex:        c.Column,
		ForceSendFields:    []string{"RowIndex", "ColumnIndex"},
	}
}

// InsertTableRow inserts a row next to the row of cell.
func (s *Service) InsertTableRow(ctx context.Context, documentID string, cell CellLocation, below bool) (*docs.BatchUpdateDocumentResponse, error) {
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		InsertTableRow: &docs.InsertTableRowRequest{TableCellLocation: cell.api(), InsertBelow: below},
	})
}

// DeleteTableRow deletes the row containing cell.
func (s *Service) DeleteTableRow(ctx context.Context, documentID string, cell CellLocation) (*docs.BatchUpdateDocumentResponse, error) {
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		DeleteTableRow: &docs.DeleteTableRowRequest{TableCellLocation: cell.api()},
	})
}

// InsertImage inserts the image at uri. Width and height are in points; the
// size is only sent when both are positive.
func (s *Service) InsertImage(ctx context.Context, documentID string, index int64, uri string, width, height float64) (*docs.BatchUpdateDocumentResponse, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, fmt.Errorf("image uri: %w", domain.ErrInvalidInput)
	}
	req := &docs.InsertInlineImageRequest{Location: location(index), Uri: uri}
	if width > 0 && height > 0 {
		req.ObjectSize = &docs.Size{
			Width:  &docs.Dimension{Magnitude: width, Unit: pointUnit},
			Height: &docs.Dimension{Magnitude: height, Unit: pointUnit},
		}
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{InsertInlineImage: req})
}

// UpdateParagraphStyle applies a named style such as HEADING_1.
func (s *Service) UpdateParagraphStyle(ctx context.Context, documentID string, start, end int64, namedStyle string) (*docs.BatchUpdateDocumentResponse, error) {
	r, err := textRange(start, end)
	if err != nil {
		return nil, err
	}
	if namedStyle == "" {
		return nil, fmt.Errorf("paragraph style: %w", domain.ErrInvalidInput)
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		UpdateParagraphStyle: &docs.UpdateParagraphStyleRequest{
			Range:          r,
			ParagraphStyle: &docs.ParagraphStyle{NamedStyleType: namedStyle},
			Fields:         "namedStyleType",
		},
	})
}

// InsertPageBreak inserts a page break at index.
func (s *Service) InsertPageBreak(ctx context.Context, documentID string, index int64) (*docs.BatchUpdateDocumentResponse, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		InsertPageBreak: &docs.InsertPageBreakRequest{Location: location(index)},
	})
}

// InsertSectionBreak inserts a section break at index. sectionType defaults
// to NEXT_PAGE.
func (s *Service) InsertSectionBreak(ctx context.Context, documentID string, index int64, sectionType string) (*docs.BatchUpdateDocumentResponse, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if sectionType == "" {
		sectionType = SectionNextPage
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		InsertSectionBreak: &docs.InsertSectionBreakRequest{Location: location(index), SectionType: sectionType},
	})
}

// CreateComment adds a Drive comment to the document. quoted anchors the
// comment to a piece of text and may be empty.
func (s *Service) CreateComment(ctx context.Context, documentID, content, quoted string) (*drivev3.Comment, error) {
	return s.files.CreateComment(ctx, documentID, content, quoted)
}

// GetRevisions lists the document's revision history.
func (s *Service) GetRevisions(ctx context.Context, documentID string) ([]*drivev3.Revision, error) {
	return s.files.ListRevisions(ctx, documentID)
}

func location(index int64) *docs.Location {
	return &docs.Location{Index: index}
}

func checkIndex(index int64) error {
	if index < 1 {
		return fmt.Errorf("index %d: %w", index, domain.ErrInvalidInput)
	}
	return nil
}

func textRange(start, end int64) (*docs.Range, error) {
	if start < 1 || end <= start {
		return nil, fmt.Errorf("range [%d, %d): %w", start, end, domain.ErrInvalidInput)
	}
	return &docs.Range{StartIndex: start, EndIndex: end}, nil
}
