package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"voting-platform/internal/domain"
	"voting-platform/internal/tally"
)

const SheetName = "Polls"

var Header = []string{"Poll", "Description", "Status", "End date", "Option", "Votes", "Percentage"}

// StatusLabel is the human label written for a poll status
func StatusLabel(s domain.PollStatus) string {
	if s == domain.PollStatusActive {
		return "Active"
	}
	return "Completed"
}

// Rows projects polls to a header plus one row per option.
// A poll without options still gets one row with the option columns left empty.
func Rows(polls []domain.Poll) [][]string {
	rows := make([][]string, 0, len(polls)*4+1)
	rows = append(rows, append([]string(nil), Header...))

	for _, p := range polls {
		base := []string{p.Title, p.Description, StatusLabel(p.Status), p.EndDate}
		if len(p.Options) == 0 {
			rows = append(rows, append(base, "", "", ""))
			continue
		}
		for _, o := range p.Options {
			row := make([]string, 0, len(Header))
			row = append(row, base...)
			row = append(row,
				o.Text,
				strconv.Itoa(o.Votes),
				tally.FormatPercentage(o.Votes, p.TotalVotes)+"%",
			)
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteXLSX writes polls as a single-sheet workbook
func WriteXLSX(w io.Writer, polls []domain.Poll) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, row := range Rows(polls) {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		// votes stay numeric so the sheet can sum them
		if i > 0 && row[5] != "" {
			if n, err := strconv.Atoi(row[5]); err == nil {
				cells[5] = n
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "B", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "C", lastCol, 14); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
