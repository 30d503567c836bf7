package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace/calendar"
	"github.com/custodia-labs/gspace/internal/workspace/docs"
	"github.com/custodia-labs/gspace/internal/workspace/drive"
	"github.com/custodia-labs/gspace/internal/workspace/gmail"
)

const defaultLimit = 10

// ListEventsInput is the input schema for the list_events tool.
type ListEventsInput struct {
	CalendarID string `json:"calendar_id,omitempty" jsonschema:"calendar to read (default primary)"`
	Days       int    `json:"days,omitempty" jsonschema:"number of days ahead to look (default 7)"`
	Query      string `json:"query,omitempty" jsonschema:"free text filter"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of events (default 10)"`
}

// EventOutput is one calendar event.
type EventOutput struct {
	ID        string   `json:"id"`
	Summary   string   `json:"summary"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Location  string   `json:"location,omitempty"`
	Attendees []string `json:"attendees,omitempty"`
	Link      string   `json:"link,omitempty"`
}

// ListEventsOutput is the output schema for the list_events tool.
type ListEventsOutput struct {
	Events []EventOutput `json:"events"`
	Count  int           `json:"count"`
}

// SearchEmailsInput is the input schema for the search_emails tool.
type SearchEmailsInput struct {
	Query string `json:"query" jsonschema:"Gmail search query, e.g. from:alice is:unread"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of messages (default 10)"`
}

// EmailOutput summarises one message.
type EmailOutput struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Snippet string `json:"snippet,omitempty"`
	Body    string `json:"body,omitempty"`
	Link    string `json:"link"`
}

// SearchEmailsOutput is the output schema for the search_emails tool.
type SearchEmailsOutput struct {
	Emails []EmailOutput `json:"emails"`
	Count  int           `json:"count"`
}

// ReadEmailInput is the input schema for the read_email tool.
type ReadEmailInput struct {
	MessageID string `json:"message_id" jsonschema:"id of the message to read"`
}

// SendEmailInput is the input schema for the send_email tool.
type SendEmailInput struct {
	To      []string `json:"to" jsonschema:"recipient addresses"`
	Subject string   `json:"subject"`
	Body    string   `json:"body" jsonschema:"plain text body"`
}

// SendEmailOutput is the output schema for the send_email tool.
type SendEmailOutput struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

// ListFilesInput is the input schema for the list_files tool.
type ListFilesInput struct {
	Query string `json:"query,omitempty" jsonschema:"Drive query, e.g. name contains 'report'"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of files (default 10)"`
}

// FileOutput is one Drive file.
type FileOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
	Link     string `json:"link"`
}

// ListFilesOutput is the output schema for the list_files tool.
type ListFilesOutput struct {
	Files []FileOutput `json:"files"`
	Count int          `json:"count"`
}

// DocumentInput is the input schema for the get_document_text tool.
type DocumentInput struct {
	DocumentID string `json:"document_id"`
}

// DocumentOutput is the output schema for the get_document_text tool.
type DocumentOutput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Link  string `json:"link"`
}

// SheetValuesInput is the input schema for the get_sheet_values tool.
type SheetValuesInput struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Range         string `json:"range" jsonschema:"A1 range, e.g. Sheet1!A1:D10"`
}

// SheetValuesOutput is the output schema for the get_sheet_values tool.
type SheetValuesOutput struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// UserInfoInput is the empty input of the user_info tool.
type UserInfoInput struct{}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_events",
		Description: "List upcoming Google Calendar events",
	}, s.handleListEvents)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_emails",
		Description: "Search Gmail messages with Gmail query syntax",
	}, s.handleSearchEmails)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "read_email",
		Description: "Read the plain text body of a Gmail message",
	}, s.handleReadEmail)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "send_email",
		Description: "Send a plain text email from the authenticated account",
	}, s.handleSendEmail)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_files",
		Description: "List or search Google Drive files",
	}, s.handleListFiles)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document_text",
		Description: "Read a Google Doc as plain text",
	}, s.handleGetDocumentText)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_sheet_values",
		Description: "Read cell values from a Google Sheets range",
	}, s.handleGetSheetValues)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "user_info",
		Description: "Show the authenticated Google account",
	}, s.handleUserInfo)
}

func limitOr(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

func (s *Server) handleListEvents(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListEventsInput,
) (*mcp.CallToolResult, ListEventsOutput, error) {
	svc, err := s.ports.Workspace.Calendar(ctx)
	if err != nil {
		return nil, ListEventsOutput{}, err
	}

	opts := calendar.EventListOptions{
		CalendarID: input.CalendarID,
		MaxResults: limitOr(input.Limit),
		Query:      input.Query,
	}
	if input.Days > 0 {
		opts.TimeMin = time.Now()
		opts.TimeMax = opts.TimeMin.AddDate(0, 0, input.Days)
	}
	events, err := svc.ListEvents(ctx, opts)
	if err != nil {
		return nil, ListEventsOutput{}, err
	}

	output := ListEventsOutput{Events: make([]EventOutput, len(events)), Count: len(events)}
	for i, e := range events {
		start, end := calendar.EventTimes(e)
		output.Events[i] = EventOutput{
			ID:        e.Id,
			Summary:   e.Summary,
			Start:     start,
			End:       end,
			Location:  e.Location,
			Attendees: calendar.AttendeeNames(e),
			Link:      e.HtmlLink,
		}
	}
	return nil, output, nil
}

func (s *Server) handleSearchEmails(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchEmailsInput,
) (*mcp.CallToolResult, SearchEmailsOutput, error) {
	svc, err := s.ports.Workspace.Gmail(ctx)
	if err != nil {
		return nil, SearchEmailsOutput{}, err
	}

	msgs, err := svc.ListMessageDetails(ctx, gmail.ListOptions{
		Query:      input.Query,
		MaxResults: limitOr(input.Limit),
	})
	if err != nil {
		return nil, SearchEmailsOutput{}, err
	}

	output := SearchEmailsOutput{Emails: make([]EmailOutput, len(msgs)), Count: len(msgs)}
	for i, m := range msgs {
		output.Emails[i] = EmailOutput{
			ID:      m.Id,
			From:    gmail.Header(m, "From"),
			Subject: gmail.Header(m, "Subject"),
			Date:    gmail.Header(m, "Date"),
			Snippet: m.Snippet,
			Link:    gmail.WebURL(m.Id),
		}
	}
	return nil, output, nil
}

func (s *Server) handleReadEmail(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReadEmailInput,
) (*mcp.CallToolResult, EmailOutput, error) {
	svc, err := s.ports.Workspace.Gmail(ctx)
	if err != nil {
		return nil, EmailOutput{}, err
	}

	m, err := svc.GetMessage(ctx, input.MessageID, gmail.GetOptions{Format: gmail.FormatFull})
	if err != nil {
		return nil, EmailOutput{}, err
	}
	return nil, EmailOutput{
		ID:      m.Id,
		From:    gmail.Header(m, "From"),
		Subject: gmail.Header(m, "Subject"),
		Date:    gmail.Header(m, "Date"),
		Body:    gmail.PlainTextBody(m),
		Link:    gmail.WebURL(m.Id),
	}, nil
}

func (s *Server) handleSendEmail(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SendEmailInput,
) (*mcp.CallToolResult, SendEmailOutput, error) {
	if len(input.To) == 0 {
		return nil, SendEmailOutput{}, fmt.Errorf("send email: recipient: %w", domain.ErrInvalidInput)
	}
	svc, err := s.ports.Workspace.Gmail(ctx)
	if err != nil {
		return nil, SendEmailOutput{}, err
	}

	sent, err := svc.SendSimpleEmail(ctx, "", input.To, input.Subject, input.Body)
	if err != nil {
		return nil, SendEmailOutput{}, err
	}
	return nil, SendEmailOutput{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

func (s *Server) handleListFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListFilesInput,
) (*mcp.CallToolResult, ListFilesOutput, error) {
	svc, err := s.ports.Workspace.Drive(ctx)
	if err != nil {
		return nil, ListFilesOutput{}, err
	}

	files, err := svc.ListFiles(ctx, drive.ListOptions{Query: input.Query, Limit: limitOr(input.Limit)})
	if err != nil {
		return nil, ListFilesOutput{}, err
	}

	output := ListFilesOutput{Files: make([]FileOutput, len(files)), Count: len(files)}
	for i, f := range files {
		output.Files[i] = FileOutput{
			ID:       f.Id,
			Name:     f.Name,
			MimeType: f.MimeType,
			Size:     f.Size,
			Modified: f.ModifiedTime,
			Link:     drive.WebURL(f),
		}
	}
	return nil, output, nil
}

func (s *Server) handleGetDocumentText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	svc, err := s.ports.Workspace.Docs(ctx)
	if err != nil {
		return nil, DocumentOutput{}, err
	}

	doc, err := svc.GetDocument(ctx, input.DocumentID, "")
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, DocumentOutput{
		Title: doc.Title,
		Text:  docs.PlainText(doc),
		Link:  docs.WebURL(doc.DocumentId),
	}, nil
}

func (s *Server) handleGetSheetValues(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SheetValuesInput,
) (*mcp.CallToolResult, SheetValuesOutput, error) {
	svc, err := s.ports.Workspace.Sheets(ctx)
	if err != nil {
		return nil, SheetValuesOutput{}, err
	}

	vr, err := svc.GetValues(ctx, input.SpreadsheetID, input.Range, "")
	if err != nil {
		return nil, SheetValuesOutput{}, err
	}
	values := vr.Values
	if values == nil {
		values = [][]any{}
	}
	return nil, SheetValuesOutput{Range: vr.Range, Values: values}, nil
}

func (s *Server) handleUserInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ UserInfoInput,
) (*mcp.CallToolResult, domain.UserInfo, error) {
	info, err := s.ports.Workspace.UserInfo(ctx)
	if err != nil {
		return nil, domain.UserInfo{}, err
	}
	return nil, *info, nil
}
