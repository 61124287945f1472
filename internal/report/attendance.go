// Package report renders attendance records as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/xuri/excelize/v2"
)

const (
	SheetAttendance = "Attendance"
	SheetSummary    = "Summary"

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var header = []any{"Date", "Employee", "Work mode", "Check in", "Check out", "Hours", "Check-in photo", "Check-out photo"}

// Summary totals one export.
type Summary struct {
	Days       int
	Complete   int
	WFH        int
	WFO        int
	TotalHours float64
}

// Summarize counts days, work modes and recorded hours.
func Summarize(records []entity.Attendance) Summary {
	var s Summary
	for i := range records {
		a := &records[i]
		s.Days++

		switch a.WorkMode {
		case entity.WorkModeWFH:
			s.WFH++
		case entity.WorkModeWFO:
			s.WFO++
		}

		if a.Complete() {
			s.Complete++
			s.TotalHours += hours(a)
		}
	}

	return s
}

func hours(a *entity.Attendance) float64 {
	if !a.Complete() {
		return 0
	}

	return a.CheckOut.Sub(*a.CheckIn).Hours()
}

// WriteAttendance writes records, oldest day first, plus a summary sheet.
// Times are shown in loc; nil means UTC.
func WriteAttendance(w io.Writer, records []entity.Attendance, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]entity.Attendance, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAttendance); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err = f.SetSheetRow(SheetAttendance, "A1", &header); err != nil {
		return err
	}

	if err = f.SetRowStyle(SheetAttendance, 1, 1, bold); err != nil {
		return err
	}

	for i := range sorted {
		a := &sorted[i]
		row := []any{
			a.Date.In(loc).Format(dateLayout),
			a.EmployeeID,
			string(a.WorkMode),
			clockTime(a.CheckIn, loc),
			clockTime(a.CheckOut, loc),
			nil,
			deref(a.CheckInPhoto),
			deref(a.CheckOutPhoto),
		}

		if a.Complete() {
			row[5] = roundHours(hours(a))
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		if err = f.SetSheetRow(SheetAttendance, cell, &row); err != nil {
			return err
		}
	}

	if err = f.SetColWidth(SheetAttendance, "A", "F", 12); err != nil {
		return err
	}

	if err = f.SetColWidth(SheetAttendance, "G", "H", 40); err != nil {
		return err
	}

	if err = f.SetPanes(SheetAttendance, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err = writeSummary(f, Summarize(sorted), bold); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

func writeSummary(f *excelize.File, s Summary, bold int) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}

	rows := [][]any{
		{"Days", s.Days},
		{"Complete days", s.Complete},
		{"WFH", s.WFH},
		{"WFO", s.WFO},
		{"Total hours", roundHours(s.TotalHours)},
	}

	for i, row := range rows {
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return err
	}

	return f.SetColWidth(SheetSummary, "A", "A", 16)
}

func clockTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}

	return t.In(loc).Format(timeLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func roundHours(h float64) float64 {
	return float64(int(h*100+0.5)) / 100
}
