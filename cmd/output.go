package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/fatih/color"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func printEmployees(w io.Writer, page *entity.Page[entity.Employee]) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tEMPLOYEE ID\tNAME\tEMAIL\tDEPARTMENT\tPOSITION\tSTATUS")

	for _, e := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.EmployeeID, e.Name, e.Email, str(e.Department), str(e.Position), status(e.Status))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	return printMeta(w, page.Meta)
}

func printEmployee(w io.Writer, e *entity.Employee) error {
	tw := newTable(w)

	rows := [][2]string{
		{"ID", e.ID},
		{"Employee ID", e.EmployeeID},
		{"Name", e.Name},
		{"Email", e.Email},
		{"Phone", str(e.Phone)},
		{"Department", str(e.Department)},
		{"Position", str(e.Position)},
		{"Status", status(e.Status)},
	}

	if e.JoinDate != nil {
		rows = append(rows, [2]string{"Joined", e.JoinDate.Format(dateLayout)})
	}

	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}

	return tw.Flush()
}

func printAttendances(w io.Writer, items []entity.Attendance, loc *time.Location) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tMODE\tCHECK IN\tCHECK OUT\tHOURS")

	for i := range items {
		a := &items[i]

		hours := "-"
		if a.Complete() {
			hours = fmt.Sprintf("%.2f", a.CheckOut.Sub(*a.CheckIn).Hours())
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Date.In(loc).Format(dateLayout), a.WorkMode, clock(a.CheckIn, loc), clock(a.CheckOut, loc), hours)
	}

	return tw.Flush()
}

func printToday(w io.Writer, a *entity.Attendance, loc *time.Location) {
	if a == nil {
		fmt.Fprintln(w, color.YellowString("Not clocked in today."))
		return
	}

	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("Work mode:"), a.WorkMode)
	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("Check in: "), clock(a.CheckIn, loc))

	if a.HasCheckedOut() {
		fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("Check out:"), clock(a.CheckOut, loc))
		return
	}

	fmt.Fprintln(w, color.YellowString("Not clocked out yet."))
}

func printMeta(w io.Writer, m entity.PaginationMeta) error {
	if m.TotalPages == 0 {
		_, err := fmt.Fprintln(w, color.HiBlackString("No records."))
		return err
	}

	_, err := fmt.Fprintln(w, color.HiBlackString("Page %d of %d, %d total", m.Page, m.TotalPages, m.Total))
	return err
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.GreenString(format, args...))
}

func status(s entity.EmployeeStatus) string {
	switch s {
	case entity.StatusActive:
		return color.GreenString(string(s))
	case entity.StatusOnLeave:
		return color.YellowString(string(s))
	case entity.StatusInactive:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}

	return t.In(loc).Format(clockLayout)
}

func str(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}

	return *s
}
