package sink

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteText writes the plates newline-joined.
func (s *Sink) WriteText(w io.Writer) error {
	plates := s.Plates()
	if len(plates) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(plates, "\n")+"\n")
	return err
}

const sheetName = "结果"

// WriteXLSX writes the results as a spreadsheet.
func (s *Sink) WriteXLSX(w io.Writer) error {
	results := s.Results()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{"序号", "车牌号", "完成时间", "民警"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{i + 1, r.Plate, r.CompletedAt.Format("2006-01-02 15:04:05"), r.Operator}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(sheetName, "B", "C", 20); err != nil {
		return err
	}

	return f.Write(w)
}
