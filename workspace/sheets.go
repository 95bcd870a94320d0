// ABOUTME: Google Sheets report writer with optional Drive folder placement
// ABOUTME: Creates a spreadsheet from string rows and returns its URL
package workspace

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsReporter creates spreadsheets for periodic reports.
type SheetsReporter struct {
	sheets   *sheets.Service
	drive    *drive.Service
	folderID string
	logger   *log.Logger
}

// NewSheetsReporter creates a Sheets API reporter. When folderID is set new
// spreadsheets are moved into that Drive folder. A nil logger discards.
func NewSheetsReporter(ctx context.Context, folderID string, logger *log.Logger, opts ...option.ClientOption) (*SheetsReporter, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	r := &SheetsReporter{sheets: sheetsSvc, folderID: folderID, logger: logger}
	if folderID != "" {
		driveSvc, err := drive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create drive service: %w", err)
		}
		r.drive = driveSvc
	}

	return r, nil
}

// CreateReport writes rows into a new spreadsheet titled title.
func (r *SheetsReporter) CreateReport(ctx context.Context, title string, rows [][]string) (string, error) {
	rowData := make([]*sheets.RowData, 0, len(rows))
	for _, row := range rows {
		cells := make([]*sheets.CellData, 0, len(row))
		for _, cell := range row {
			value := cell
			cells = append(cells, &sheets.CellData{
				UserEnteredValue: &sheets.ExtendedValue{StringValue: &value},
			})
		}
		rowData = append(rowData, &sheets.RowData{Values: cells})
	}

	created, err := r.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{
			{Data: []*sheets.GridData{{RowData: rowData}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	if r.drive != nil && created.SpreadsheetId != "" {
		_, err := r.drive.Files.Update(created.SpreadsheetId, &drive.File{}).
			AddParents(r.folderID).
			Fields("id, parents").
			Context(ctx).
			Do()
		if err != nil {
			// The report exists; only its location is wrong.
			r.logger.Warn("failed to move report into folder", "spreadsheet", created.SpreadsheetId, "folder", r.folderID, "err", err)
		}
	}

	if created.SpreadsheetUrl != "" {
		return created.SpreadsheetUrl, nil
	}
	return created.SpreadsheetId, nil
}
