package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"careerbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

// Exporter renders booking lists as xlsx workbooks, streamed to HTTP
// responses and optionally archived on disk.
type Exporter struct {
	archivePath string
	logger      *zerolog.Logger
}

// NewExporter creates an Exporter. archivePath may be empty to disable
// on-disk copies.
func NewExporter(archivePath string, logger *zerolog.Logger) *Exporter {
	return &Exporter{archivePath: archivePath, logger: logger}
}

// WriteBookings renders bookings to w as an xlsx workbook. When an archive
// path is configured, a copy is saved there as well.
func (e *Exporter) WriteBookings(w io.Writer, bookings []*models.Booking) error {
	f, err := e.buildWorkbook(bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	if e.archivePath != "" {
		e.archive(f)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func (e *Exporter) buildWorkbook(bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Consultant", "Date", "Time", "User Email", "Booked At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, header)
	}

	style, styleErr := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if styleErr == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(exportSheet, "A1", last, style)
	}

	for i, booking := range bookings {
		row := i + 2
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), booking.ConsultantName)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), booking.Date.Format(models.DateFormat))
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), booking.TimeLabel)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), booking.UserEmail)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), booking.CreatedAt.Format("2006-01-02 15:04"))
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", "B", 22)
	_ = f.SetColWidth(exportSheet, "C", "C", 12)
	_ = f.SetColWidth(exportSheet, "D", "D", 10)
	_ = f.SetColWidth(exportSheet, "E", "E", 28)
	_ = f.SetColWidth(exportSheet, "F", "F", 18)

	_ = f.DeleteSheet("Sheet1")

	return f, nil
}

func (e *Exporter) archive(f *excelize.File) {
	if err := os.MkdirAll(e.archivePath, 0o755); err != nil {
		e.logger.Error().Err(err).Msg("error creating export directory")
		return
	}

	fileName := fmt.Sprintf("bookings_export_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.archivePath, fileName)
	if err := f.SaveAs(filePath); err != nil {
		e.logger.Error().Err(err).Msg("error saving export file")
		return
	}
	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
}
