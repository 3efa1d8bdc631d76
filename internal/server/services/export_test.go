package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestHistoryWorkbook_Layout(t *testing.T) {
	owner := int64(9)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []*models.HistoryEntry{
		{
			HistoryID: 12,
			EntityID:  4,
			OwnerID:   &owner,
			Values: models.Values{
				"cash_box_id":    int64(2),
				"closing_date":   at,
				"final_balance":  decimal.RequireFromString("100.50"),
				"total_income":   decimal.RequireFromString("200"),
				"total_expenses": decimal.RequireFromString("99.50"),
				"comments":       nil,
			},
			ChangedBy: 9,
			ChangedAt: at,
			Operation: models.OpUpdate,
		},
	}

	b, err := HistoryWorkbook(kinds.AccountingClosings, rows)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer wb.Close()

	got, err := wb.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []string{
		"history_id", "closing_id", "user_id",
		"cash_box_id", "closing_date", "final_balance", "total_income", "total_expenses", "comments",
		"changed_by", "changed_at", "operation_type",
	}, got[0])

	assert.Equal(t, "12", got[1][0])
	assert.Equal(t, "4", got[1][1])
	assert.Equal(t, "9", got[1][2])
	assert.Equal(t, "2024-05-01T10:00:00Z", got[1][4])
	assert.Equal(t, "100.5", got[1][5])
	assert.Equal(t, "UPDATE", got[1][11])
}

func TestExportService_FollowsHistoryRules(t *testing.T) {
	f := newFixture(t)
	entities := newEntityService(f)
	s := NewExportService(entities)
	ctx := context.Background()
	alice := f.addUser(t, "alice", "pw")

	f.expectTx(true)
	rec, err := entities.Create(ctx, f.admin, kinds.Clients, acme())
	require.NoError(t, err)

	_, err = s.HistoryWorkbook(ctx, alice, kinds.Clients, rec.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	b, err := s.HistoryWorkbook(ctx, f.admin, kinds.Clients, rec.ID)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer wb.Close()

	got, err := wb.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme", got[1][3])
	assert.Equal(t, "CREATION", got[1][len(got[1])-1])
}
