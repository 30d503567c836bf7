// Package sheets wraps the Google Sheets API: spreadsheets, cell values and
// structural or formatting updates.
package sheets

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
)

// Value input and insert options.
const (
	InputRaw         = "RAW"
	InputUserEntered = "USER_ENTERED"
	InsertRows       = "INSERT_ROWS"
	Overwrite        = "OVERWRITE"
	MergeAll         = "MERGE_ALL"
	MajorRows        = "ROWS"
	MajorColumns     = "COLUMNS"
)

// Service is a rate-limited Sheets client.
type Service struct {
	api     *sheets.Service
	limiter *workspace.APILimiter
	log     zerolog.Logger
}

// New creates a Sheets service. A nil limiter gets the default budget.
func New(ctx context.Context, limiter *workspace.APILimiter, opts ...option.ClientOption) (*Service, error) {
	api, err := workspace.NewSheetsService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if limiter == nil {
		limiter = workspace.DefaultAPILimiter(workspace.ServiceSheets)
	}
	return &Service{
		api:     api,
		limiter: limiter,
		log:     logger.WithComponent("gspace.sheets"),
	}, nil
}

// API returns the underlying Sheets client.
func (s *Service) API() *sheets.Service {
	return s.api
}

// CreateSpreadsheet creates a spreadsheet with the given sheet titles. With
// no titles the API adds a default sheet.
func (s *Service) CreateSpreadsheet(ctx context.Context, title string, sheetTitles ...string) (*sheets.Spreadsheet, error) {
	if title == "" {
		return nil, fmt.Errorf("spreadsheet title: %w", domain.ErrInvalidInput)
	}
	ss := &sheets.Spreadsheet{Properties: &sheets.SpreadsheetProperties{Title: title}}
	for _, t := range sheetTitles {
		ss.Sheets = append(ss.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: t}})
	}

	created, err := workspace.Call(ctx, s.limiter, "spreadsheets.create", func(ctx context.Context) (*sheets.Spreadsheet, error) {
		return s.api.Spreadsheets.Create(ss).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("create spreadsheet: %w", err)
	}
	s.log.Info().Str("spreadsheet_id", created.SpreadsheetId).Msg("created spreadsheet")
	return created, nil
}

// GetSpreadsheet fetches a spreadsheet, optionally with cell data for the
// given ranges.
func (s *Service) GetSpreadsheet(ctx context.Context, spreadsheetID string, includeGridData bool, ranges ...string) (*sheets.Spreadsheet, error) {
	call := s.api.Spreadsheets.Get(spreadsheetID).IncludeGridData(includeGridData)
	if len(ranges) > 0 {
		call = call.Ranges(ranges...)
	}
	ss, err := workspace.Call(ctx, s.limiter, "spreadsheets.get", func(ctx context.Context) (*sheets.Spreadsheet, error) {
		return call.Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", spreadsheetID, err)
	}
	return ss, nil
}

// GetValues reads a range. majorDimension defaults to ROWS.
func (s *Service) GetValues(ctx context.Context, spreadsheetID, rng, majorDimension string) (*sheets.ValueRange, error) {
	if majorDimension == "" {
		majorDimension = MajorRows
	}
	vr, err := workspace.Call(ctx, s.limiter, "values.get", func(ctx context.Context) (*sheets.ValueRange, error) {
		return s.api.Spreadsheets.Values.Get(spreadsheetID, rng).MajorDimension(majorDimension).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get values %s: %w", rng, err)
	}
	s.log.Info().Int("rows", len(vr.Values)).Str("range", rng).Msg("fetched values")
	return vr, nil
}

// UpdateValues overwrites a range. inputOption defaults to RAW.
func (s *Service) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any, inputOption string) (*sheets.UpdateValuesResponse, error) {
	if inputOption == "" {
		inputOption = InputRaw
	}
	vr := &sheets.ValueRange{Values: values}
	resp, err := workspace.Call(ctx, s.limiter, "values.update", func(ctx context.Context) (*sheets.UpdateValuesResponse, error) {
		return s.api.Spreadsheets.Values.Update(spreadsheetID, rng, vr).ValueInputOption(inputOption).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("update values %s: %w", rng, err)
	}
	s.log.Info().Int64("cells", resp.UpdatedCells).Str("range", rng).Msg("updated values")
	return resp, nil
}

// AppendValues appends rows after the table found in rng. inputOption
// defaults to RAW and insertOption to INSERT_ROWS.
func (s *Service) AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]any, inputOption, insertOption string) (*sheets.AppendValuesResponse, error) {
	if inputOption == "" {
		inputOption = InputRaw
	}
	if insertOption == "" {
		insertOption = InsertRows
	}
	vr := &sheets.ValueRange{Values: values}
	resp, err := workspace.Call(ctx, s.limiter, "values.append", func(ctx context.Context) (*sheets.AppendValuesResponse, error) {
		return s.api.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
			ValueInputOption(inputOption).
			InsertDataOption(insertOption).
			Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("append values %s: %w", rng, err)
	}
	return resp, nil
}

// ClearValues clears the values of a range, keeping formatting.
func (s *Service) ClearValues(ctx context.Context, spreadsheetID, rng string) (*sheets.ClearValuesResponse, error) {
	resp, err := workspace.Call(ctx, s.limiter, "values.clear", func(ctx context.Context) (*sheets.ClearValuesResponse, error) {
		return s.api.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("clear values %s: %w", rng, err)
	}
	return resp, nil
}

// BatchUpdate applies structural requests atomically.
func (s *Service) BatchUpdate(ctx context.Context, spreadsheetID string, requests ...*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("batch update without requests: %w", domain.ErrInvalidInput)
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	resp, err := workspace.Call(ctx, s.limiter, "spreadsheets.batchUpdate", func(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
		return s.api.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("batch update %s: %w", spreadsheetID, err)
	}
	s.log.Debug().Int("requests", len(requests)).Msg("applied batch update")
	return resp, nil
}

// AddSheet adds a sheet. grid may be nil.
func (s *Service) AddSheet(ctx context.Context, spreadsheetID, title string, grid *sheets.GridProperties) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return s.BatchUpdate(ctx, spreadsheetID, &sheets.Request{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{Title: title, GridProperties: grid},
		},
	})
}

// DeleteSheet removes a sheet by id.
func (s *Service) DeleteSheet(ctx context.Context, spreadsheetID string, sheetID int64) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return s.BatchUpdate(ctx, spreadsheetID, &sheets.Request{
		DeleteSheet: &sheets.DeleteSheetRequest{SheetId: sheetID, ForceSendFields: []string{"SheetId"}},
	})
}

// FormatCells applies format to exactly the cells of an A1 range.
func (s *Service) FormatCells(ctx context.Context, spreadsheetID, rng string, format *sheets.CellFormat) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	parsed, err := ParseA1Range(rng)
	if err != nil {
		return nil, err
	}
	sheetID, err := s.sheetID(ctx, spreadsheetID, parsed.Sheet)
	if err != nil {
		return nil, err
	}
	return s.BatchUpdate(ctx, spreadsheetID, &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range:  parsed.GridRange(sheetID),
			Cell:   &sheets.CellData{UserEnteredFormat: format},
			Fields: "userEnteredFormat",
		},
	})
}

// SetColumnWidth sets the pixel width of columns [start, end).
func (s *Service) SetColumnWidth(ctx context.Context, spreadsheetID string, sheetID int64, start, end, width int64) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return s.resize(ctx, spreadsheetID, sheetID, "COLUMNS", start, end, width)
}

// SetRowHeight sets the pixel height of rows [start, end).
func (s *Service) SetRowHeight(ctx context.Context, spreadsheetID string, sheetID int64, start, end, height int64) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return s.resize(ctx, spreadsheetID, sheetID, "ROWS", start, end, height)
}

func (s *Service) resize(ctx context.Context, spreadsheetID string, sheetID int64, dimension string, start, end, pixels int64) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	if start < 0 || end <= start || pixels <= 0 {
		return nil, fmt.Errorf("resize %s: %w", dimension, domain.ErrInvalidInput)
	}
	return s.BatchUpdate(ctx, spreadsheetID, &sheets.Request{
		UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range: &sheets.DimensionRange{
				SheetId:         sheetID,
				Dimension:       dimension,
				StartIndex:      start,
				EndIndex:        end,
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
			Properties: &sheets.DimensionProperties{PixelSize: pixels},
			Fields:     "pixelSize",
		},
	})
}

// MergeCells merges rows [startRow, endRow) and columns [startCol, endCol).
// mergeType defaults to MERGE_ALL.
func (s *Service) MergeCells(ctx context.Context, spreadsheetID string, sheetID, startRow, endRow, startCol, endCol int64, mergeType string) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	if mergeType == "" {
		mergeType = MergeAll
	}
	return s.BatchUpdate(ctx, spreadsheetID, &sheets.Request{
		MergeCells: &sheets.MergeCellsRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    startRow,
				EndRowIndex:      endRow,
				StartColumnIndex: startCol,
				EndColumnIndex:   endCol,
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			MergeType: mergeType,
		},
	})
}

// SheetIDForRange resolves the sheet named in an A1 range. A range without
// a known sheet name resolves to the first sheet.
func (s *Service) SheetIDForRange(ctx context.Context, spreadsheetID, rng string) (int64, error) {
	parsed, err := ParseA1Range(rng)
	if err != nil {
		return 0, err
	}
	return s.sheetID(ctx, spreadsheetID, parsed.Sheet)
}

func (s *Service) sheetID(ctx context.Context, spreadsheetID, title string) (int64, error) {
	ss, err := workspace.Call(ctx, s.limiter, "spreadsheets.get", func(ctx context.Context) (*sheets.Spreadsheet, error) {
		return s.api.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	})
	if err != nil {
		return 0, fmt.Errorf("resolve sheet of %s: %w", spreadsheetID, err)
	}
	if len(ss.Sheets) == 0 {
		return 0, nil
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && title != "" && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	if title != "" {
		s.log.Debug().Str("sheet", title).Msg("sheet not found, using first sheet")
	}
	if first := ss.Sheets[0].Properties; first != nil {
		return first.SheetId, nil
	}
	return 0, nil
}
