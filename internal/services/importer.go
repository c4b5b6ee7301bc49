package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/repos"
	"github.com/intec-ai/intec-backend/internal/types"
)

// Spreadsheet column positions, 0-based. The import format is fixed:
// the pump management system always exports these 21 columns in this
// order with a single header row.
const (
	colSupplyDate = iota
	colSupplyTime
	colFiscalDate
	colFiscalTime
	colSupplyVsSale
	colNozzle
	colCoupon
	colEmployeeName
	colProduct
	colQuantity
	colUnitPrice
	colValue
	colInitialCounter
	colFinalCounter
	colCalibration
	colMovementDate
	colPriceA
	colPriceB
	colPriceC
	colRecord
	colSubstitution
	columnCount
)

const naValue = "N/A"

type ImportError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type ImportResult struct {
	ImportedCount int64         `json:"importedCount"`
	Errors        []ImportError `json:"errors,omitempty"`
}

type ImportService interface {
	ImportWorkbook(ctx context.Context, r io.Reader) (*ImportResult, error)
}

type importService struct {
	log             *logger.Logger
	transactionRepo repos.TransactionRepo
	now             func() time.Time
}

func NewImportService(log *logger.Logger, transactionRepo repos.TransactionRepo) ImportService {
	return &importService{
		log:             log.With("service", "ImportService"),
		transactionRepo: transactionRepo,
		now:             time.Now,
	}
}

// ImportWorkbook reads the first sheet of an xlsx export, validates
// every data row, and bulk-inserts the valid ones. Rows that fail
// validation are reported per line; the import only errors out when
// not a single row is usable.
func (is *importService) ImportWorkbook(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	is.log.Info("workbook loaded", "sheet", sheets[0], "rows", len(rows))

	var (
		docs         []interface{}
		importErrors []ImportError
	)
	for i, row := range rows {
		line := i + 1
		if line == 1 {
			// header row
			continue
		}
		if isBlankRow(row) {
			continue
		}
		tx, err := is.buildTransaction(row)
		if err != nil {
			is.log.Warn("row rejected", "line", line, "error", err)
			importErrors = append(importErrors, ImportError{Line: line, Error: err.Error()})
			continue
		}
		docs = append(docs, tx)
	}

	is.log.Info("rows processed", "valid", len(docs), "rejected", len(importErrors))
	if len(docs) == 0 {
		if len(importErrors) > 0 {
			return &ImportResult{Errors: importErrors}, fmt.Errorf("no valid rows in workbook, %d rows rejected", len(importErrors))
		}
		return nil, fmt.Errorf("nenhuma transação válida encontrada para importação no arquivo")
	}

	inserted, err := is.transactionRepo.InsertMany(ctx, docs)
	if err != nil {
		is.log.Error("bulk insert failed", "error", err)
		return nil, fmt.Errorf("failed to insert transactions: %w", err)
	}
	is.log.Info("import finished", "inserted", inserted)
	return &ImportResult{ImportedCount: inserted, Errors: importErrors}, nil
}

func (is *importService) buildTransaction(row []string) (*types.Transaction, error) {
	var errs []string

	supplyDate := parseDateAndTime(cell(row, colSupplyDate), cell(row, colSupplyTime))
	if supplyDate == nil {
		errs = append(errs, "data de abastecimento inválida ou ausente")
	}
	fiscalDate := parseDateAndTime(cell(row, colFiscalDate), cell(row, colFiscalTime))
	if cell(row, colFiscalDate) != "" && fiscalDate == nil {
		errs = append(errs, fmt.Sprintf("data fiscal inválida: %q", cell(row, colFiscalDate)))
	}
	movementDate := parseDateAndTime(cell(row, colMovementDate), "")
	if cell(row, colMovementDate) != "" && movementDate == nil {
		errs = append(errs, fmt.Sprintf("data de movimento inválida: %q", cell(row, colMovementDate)))
	}

	coupon := stringOrNA(cell(row, colCoupon))
	if coupon == naValue {
		errs = append(errs, "cupom ausente")
	}
	employee := stringOrNA(cell(row, colEmployeeName))
	if employee == naValue {
		errs = append(errs, "nome do funcionário ausente")
	}
	product := stringOrNA(cell(row, colProduct))
	if product == naValue {
		errs = append(errs, "produto ausente")
	}

	quantity := parseBrazilianNumber(cell(row, colQuantity))
	if quantity == nil {
		errs = append(errs, "quantidade inválida ou ausente")
	}
	unitPrice := parseBrazilianNumber(cell(row, colUnitPrice))
	if unitPrice == nil {
		errs = append(errs, "preço unitário inválido ou ausente")
	}
	value := parseBrazilianNumber(cell(row, colValue))
	if value == nil {
		errs = append(errs, "valor de venda inválido ou ausente")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("dados inválidos: %s", strings.Join(errs, ", "))
	}

	now := is.now().UTC()
	return &types.Transaction{
		SupplyDate:     *supplyDate,
		SupplyTime:     stringOrNA(cell(row, colSupplyTime)),
		FiscalDate:     fiscalDate,
		FiscalTime:     stringOrNA(cell(row, colFiscalTime)),
		SupplyVsSale:   stringOrNA(cell(row, colSupplyVsSale)),
		Nozzle:         stringOrNA(cell(row, colNozzle)),
		Coupon:         coupon,
		EmployeeName:   employee,
		Product:        product,
		Quantity:       *quantity,
		UnitPrice:      *unitPrice,
		Value:          *value,
		InitialCounter: parseBrazilianNumber(cell(row, colInitialCounter)),
		FinalCounter:   parseBrazilianNumber(cell(row, colFinalCounter)),
		Calibration:    parseCalibration(cell(row, colCalibration)),
		MovementDate:   movementDate,
		PriceA:         parseBrazilianNumber(cell(row, colPriceA)),
		PriceB:         parseBrazilianNumber(cell(row, colPriceB)),
		PriceC:         parseBrazilianNumber(cell(row, colPriceC)),
		Record:         stringOrNA(cell(row, colRecord)),
		Substitution:   stringOrNA(cell(row, colSubstitution)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// cell is bounds-safe: excelize trims trailing empty cells from rows.
func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func stringOrNA(s string) string {
	if s == "" {
		return naValue
	}
	return s
}

// parseBrazilianNumber accepts values like "R$ 5,89" and "1.234,56":
// currency prefix dropped, dots are thousand separators, the comma is
// the decimal mark.
func parseBrazilianNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &num
}

// parseDateAndTime combines a dd/MM/yyyy date cell with an optional
// hh:mm[:ss] time cell into a UTC instant. A malformed time degrades
// to midnight; a malformed date invalidates the whole cell.
func parseDateAndTime(dateStr, timeStr string) *time.Time {
	if dateStr == "" {
		return nil
	}
	day, err := time.Parse("02/01/2006", dateStr)
	if err != nil {
		return nil
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if timeStr != "" {
		parts := strings.Split(timeStr, ":")
		if len(parts) >= 2 {
			hours, errH := strconv.Atoi(parts[0])
			minutes, errM := strconv.Atoi(parts[1])
			seconds := 0
			var errS error
			if len(parts) > 2 {
				seconds, errS = strconv.Atoi(parts[2])
			}
			if errH == nil && errM == nil && errS == nil {
				t = t.Add(time.Duration(hours)*time.Hour +
					time.Duration(minutes)*time.Minute +
					time.Duration(seconds)*time.Second)
			}
		}
	}
	return &t
}

func parseCalibration(s string) *bool {
	var b bool
	switch strings.ToUpper(s) {
	case "SIM":
		b = true
	case "NÃO", "NAO":
		b = false
	default:
		return nil
	}
	return &b
}
