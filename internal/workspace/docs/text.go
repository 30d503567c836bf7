package docs

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/docs/v1"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// TextStyle lists the text attributes to change. Nil and zero fields are
// left untouched.
type TextStyle struct {
	Bold          *bool
	Italic        *bool
	Underline     *bool
	Strikethrough *bool
	// FontSize is in points.
	FontSize        float64
	ForegroundColor *docs.OptionalColor
}

// build returns the API style and its field mask.
func (t TextStyle) build() (*docs.TextStyle, string) {
	style := &docs.TextStyle{}
	var fields []string
	flag := func(v *bool, field, name string, dst *bool) {
		if v == nil {
			return
		}
		*dst = *v
		fields = append(fields, field)
		style.ForceSendFields = append(style.ForceSendFields, name)
	}
	flag(t.Bold, "bold", "Bold", &style.Bold)
	flag(t.Italic, "italic", "Italic", &style.Italic)
	flag(t.Underline, "underline", "Underline", &style.Underline)
	flag(t.Strikethrough, "strikethrough", "Strikethrough", &style.Strikethrough)
	if t.FontSize > 0 {
		style.FontSize = &docs.Dimension{Magnitude: t.FontSize, Unit: pointUnit}
		fields = append(fields, "fontSize")
	}
	if t.ForegroundColor != nil {
		style.ForegroundColor = t.ForegroundColor
		fields = append(fields, "foregroundColor")
	}
	return style, strings.Join(fields, ",")
}

// UpdateTextStyle applies style to [start, end). A style with no fields set
// is rejected.
func (s *Service) UpdateTextStyle(ctx context.Context, documentID string, start, end int64, style TextStyle) (*docs.BatchUpdateDocumentResponse, error) {
	r, err := textRange(start, end)
	if err != nil {
		return nil, err
	}
	ts, fields := style.build()
	if fields == "" {
		return nil, fmt.Errorf("text style without fields: %w", domain.ErrInvalidInput)
	}
	return s.BatchUpdate(ctx, documentID, &docs.Request{
		UpdateTextStyle: &docs.UpdateTextStyleRequest{Range: r, TextStyle: ts, Fields: fields},
	})
}

// PlainText returns the text of the document body, including table cells
// and tables of contents, in document order.
func PlainText(doc *docs.Document) string {
	if doc == nil || doc.Body == nil {
		return ""
	}
	var b strings.Builder
	writeElements(&b, doc.Body.Content)
	return b.String()
}

func writeElements(b *strings.Builder, elements []*docs.StructuralElement) {
	for _, el := range elements {
		switch {
		case el.Paragraph != nil:
			for _, pe := range el.Paragraph.Elements {
				if pe.TextRun != nil {
					b.WriteString(pe.TextRun.Content)
				}
			}
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					writeElements(b, cell.Content)
				}
			}
		case el.TableOfContents != nil:
			writeElements(b, el.TableOfContents.Content)
		}
	}
}

// WebURL returns the editor link for a document.
func WebURL(documentID string) string {
	if documentID == "" {
		return ""
	}
	return "https://docs.google.com/document/d/" + documentID + "/edit"
}
