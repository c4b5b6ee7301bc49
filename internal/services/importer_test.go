package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/types"
)

var importHeader = []interface{}{
	"Data Abast.", "Hora Abast.", "Data Fiscal", "Hora Fiscal", "Abast. x Venda",
	"Bico", "Cupom", "Funcionario", "Produto", "Quantidade", "Preço Unitario",
	"Valor", "Encerrante Ini.", "Encerrante Fim", "Aferição", "Data Movimento",
	"Preço A", "Preço B", "Preço C", "Registro", "Substituição",
}

func validImportRow() []interface{} {
	return []interface{}{
		"14/04/2025", "08:30:15", "14/04/2025", "08:31", "OK",
		"01", "123456", "ROBERTO SOUZA LIMA", "GASOLINA C COMUM", "45,5", "R$ 5,89",
		"267,99", "1.234,56", "1.280,06", "NÃO", "14/04/2025",
		"5,89", "5,79", "", "0001", "",
	}
}

func workbookBytes(t *testing.T, rows ...[]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &importHeader))
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	return f
}

func newImportFixture() (*importService, *fakeTransactionRepo) {
	txns := &fakeTransactionRepo{}
	svc := &importService{
		log:             logger.NewNop(),
		transactionRepo: txns,
		now:             func() time.Time { return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC) },
	}
	return svc, txns
}

func TestImportWorkbookParsesValidRow(t *testing.T) {
	svc, txns := newImportFixture()
	f := workbookBytes(t, validImportRow())
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := svc.ImportWorkbook(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ImportedCount)
	assert.Empty(t, result.Errors)

	require.Len(t, txns.gotDocs, 1)
	require.Len(t, txns.gotDocs[0], 1)
	tx, ok := txns.gotDocs[0][0].(*types.Transaction)
	require.True(t, ok)

	assert.Equal(t, time.Date(2025, 4, 14, 8, 30, 15, 0, time.UTC), tx.SupplyDate)
	assert.Equal(t, "08:30:15", tx.SupplyTime)
	require.NotNil(t, tx.FiscalDate)
	assert.Equal(t, time.Date(2025, 4, 14, 8, 31, 0, 0, time.UTC), *tx.FiscalDate)
	assert.Equal(t, "ROBERTO SOUZA LIMA", tx.EmployeeName)
	assert.Equal(t, "GASOLINA C COMUM", tx.Product)
	assert.InDelta(t, 45.5, tx.Quantity, 0.001)
	assert.InDelta(t, 5.89, tx.UnitPrice, 0.001)
	assert.InDelta(t, 267.99, tx.Value, 0.001)
	require.NotNil(t, tx.InitialCounter)
	assert.InDelta(t, 1234.56, *tx.InitialCounter, 0.001)
	require.NotNil(t, tx.Calibration)
	assert.False(t, *tx.Calibration)
	require.NotNil(t, tx.MovementDate)
	assert.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC), *tx.MovementDate)
	assert.Nil(t, tx.PriceC)
	assert.Equal(t, "N/A", tx.Substitution)
}

func TestImportWorkbookReportsRejectedRowsWithLineNumbers(t *testing.T) {
	svc, txns := newImportFixture()

	badRow := validImportRow()
	badRow[colEmployeeName] = ""
	badRow[colQuantity] = "abc"

	f := workbookBytes(t, validImportRow(), badRow)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := svc.ImportWorkbook(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ImportedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Line)
	assert.Contains(t, result.Errors[0].Error, "funcionário")
	assert.Contains(t, result.Errors[0].Error, "quantidade")
	require.Len(t, txns.gotDocs, 1)
	assert.Len(t, txns.gotDocs[0], 1)
}

func TestImportWorkbookFailsWhenNoValidRows(t *testing.T) {
	svc, txns := newImportFixture()

	badRow := validImportRow()
	badRow[colSupplyDate] = "not-a-date"

	f := workbookBytes(t, badRow)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := svc.ImportWorkbook(context.Background(), buf)
	require.Error(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Empty(t, txns.gotDocs)
}

func TestImportWorkbookFailsOnEmptySheet(t *testing.T) {
	svc, _ := newImportFixture()
	f := workbookBytes(t)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = svc.ImportWorkbook(context.Background(), buf)
	require.Error(t, err)
}

func TestImportWorkbookPropagatesStoreFailure(t *testing.T) {
	svc, txns := newImportFixture()
	txns.insertErr = errors.New("mongo down")

	f := workbookBytes(t, validImportRow())
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = svc.ImportWorkbook(context.Background(), buf)
	require.Error(t, err)
}

func TestImportWorkbookRejectsNonWorkbookInput(t *testing.T) {
	svc, _ := newImportFixture()
	_, err := svc.ImportWorkbook(context.Background(), strings.NewReader("not an xlsx"))
	require.Error(t, err)
}

func TestParseBrazilianNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"R$ 5,89", 5.89},
		{"1.234,56", 1234.56},
		{"45,5", 45.5},
		{"267", 267},
	}
	for _, tc := range tests {
		got := parseBrazilianNumber(tc.in)
		require.NotNil(t, got, tc.in)
		assert.InDelta(t, tc.want, *got, 0.001, tc.in)
	}
	assert.Nil(t, parseBrazilianNumber(""))
	assert.Nil(t, parseBrazilianNumber("abc"))
}

func TestParseDateAndTime(t *testing.T) {
	got := parseDateAndTime("14/04/2025", "08:30:15")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 4, 14, 8, 30, 15, 0, time.UTC), *got)

	// malformed time degrades to midnight
	got = parseDateAndTime("14/04/2025", "xx:yy")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, parseDateAndTime("", "08:30"))
	assert.Nil(t, parseDateAndTime("99/99/2025", ""))
}
