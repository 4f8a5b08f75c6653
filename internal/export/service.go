package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

const sheetName = "Guardias"

type Lister interface {
	List(ctx context.Context) ([]repository.StoredRecord, error)
}

// Service produces XLSX bytes of confirmed records.
type Service struct {
	store  Lister
	logger *slog.Logger
}

func NewService(store Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportRecordsXLSX returns a workbook with the records confirmed inside the date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> every record.
func (s *Service) ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	recs := inWindow(all, fromDate, toDate)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet instead of leaving an empty "Sheet1" behind
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Fecha confirmación",
		"Nombre",
		"Apellidos",
		"RUT",
		"RUT válido",
		"Remitente",
		"ID",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		write(1, r.ConfirmedAt.UTC().Format("2006-01-02 15:04:05"))
		write(2, r.Name.Or(constants.MissingValue))
		write(3, r.Surname.Or(constants.MissingValue))

		id, ok := r.NationalID.Value()
		if ok {
			write(4, id)
			write(5, yesNo(identity.ValidCheckDigit(id)))
		} else {
			write(4, constants.MissingValue)
			write(5, "")
		}
		write(6, r.Sender)
		write(7, r.ID.String())
		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheetName, "A", "A", 20) // date
	_ = f.SetColWidth(sheetName, "B", "C", 28) // names
	_ = f.SetColWidth(sheetName, "D", "E", 14) // national id
	_ = f.SetColWidth(sheetName, "F", "F", 26) // sender
	_ = f.SetColWidth(sheetName, "G", "G", 38) // id

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func inWindow(recs []repository.StoredRecord, from, to *time.Time) []repository.StoredRecord {
	if from == nil && to == nil {
		return recs
	}
	var out []repository.StoredRecord
	for _, r := range recs {
		at := r.ConfirmedAt.UTC()
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		if from != nil && day.Before(*from) {
			continue
		}
		if to != nil && day.After(*to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
