package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

// ExportService renders audit trails as Excel workbooks.
type ExportService struct {
	entities *EntityService
}

func NewExportService(entities *EntityService) *ExportService {
	return &ExportService{entities: entities}
}

// HistoryWorkbook exports the history of one entity under the same rules
// as reading it.
func (s *ExportService) HistoryWorkbook(ctx context.Context, id auth.Identity, k *kinds.Kind, entityID int64) ([]byte, error) {
	rows, err := s.entities.History(ctx, id, k, entityID)
	if err != nil {
		return nil, err
	}
	return HistoryWorkbook(k, rows)
}

// HistoryHeaders lists the workbook columns for k.
func HistoryHeaders(k *kinds.Kind) []string {
	headers := []string{"history_id", k.HistoryFK, "user_id"}
	headers = append(headers, k.Columns()...)
	return append(headers, "changed_by", "changed_at", "operation_type")
}

// HistoryWorkbook writes rows into a single-sheet xlsx document.
func HistoryWorkbook(k *kinds.Kind, rows []*models.HistoryEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	headers := HistoryHeaders(k)
	for col, h := range headers {
		if err := setCell(f, col+1, 1, h); err != nil {
			return nil, err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(historySheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range rows {
		line := []any{h.HistoryID, h.EntityID, cellValue(h.OwnerID)}
		for _, c := range k.Columns() {
			line = append(line, cellValue(h.Values[c]))
		}
		line = append(line, h.ChangedBy, h.ChangedAt.UTC().Format(time.RFC3339), string(h.Operation))

		for col, v := range line {
			if err := setCell(f, col+1, i+2, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(historySheet, cell, value)
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case *int64:
		if t == nil {
			return ""
		}
		return *t
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return t
	}
}
