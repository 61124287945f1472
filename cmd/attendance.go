package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	api "github.com/adamanr/hr_console/internal/api/http"
	"github.com/adamanr/hr_console/internal/controllers"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/report"
	"github.com/spf13/cobra"
)

// exportPageSize bounds one history request while exporting.
const exportPageSize = 100

func newAttendanceCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attendance",
		Aliases: []string{"att"},
		Short:   "Clock in, clock out and review attendance",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}

			a := get()
			if err := a.requireAuth(); err != nil {
				return err
			}

			if !a.deps.Session.Identity().HasAnyRole(api.AttendanceRoles...) {
				return errors.New("your role has no attendance access")
			}

			return nil
		},
	}

	cmd.AddCommand(
		newTodayCmd(get),
		newClockCmd(get, true),
		newClockCmd(get, false),
		newHistoryCmd(get),
		newExportCmd(get),
	)

	return cmd
}

func newTodayCmd(get func() *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show today's attendance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			att, err := get().ctrls.AttendanceController.Today(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), att)
			}

			printToday(cmd.OutOrStdout(), att, time.Local)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func newClockCmd(get func() *app, in bool) *cobra.Command {
	var photoPath, mode string

	use, short := "clock-in", "Record arrival with a selfie"
	if !in {
		use, short = "clock-out", "Record departure with a selfie"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()

			workMode := entity.WorkMode(strings.ToUpper(mode))
			if !workMode.Valid() {
				return fmt.Errorf("work mode must be WFH or WFO, got %q", mode)
			}

			photo, err := openPhoto(a.ctrls.UploadController, photoPath)
			if err != nil {
				return err
			}

			var att *entity.Attendance
			if in {
				att, err = a.ctrls.AttendanceController.ClockIn(cmd.Context(), photo, workMode)
			} else {
				att, err = a.ctrls.AttendanceController.ClockOut(cmd.Context(), photo, workMode)
			}
			if err != nil {
				return err
			}

			if in {
				success(cmd.OutOrStdout(), "Clocked in at %s (%s)", clock(att.CheckIn, time.Local), att.WorkMode)
			} else {
				success(cmd.OutOrStdout(), "Clocked out at %s", clock(att.CheckOut, time.Local))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&photoPath, "photo", "f", "", "selfie image (JPEG, PNG, WEBP or GIF)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(entity.WorkModeWFO), "work mode, WFH or WFO")
	_ = cmd.MarkFlagRequired("photo")

	return cmd
}

func openPhoto(uploads *controllers.UploadController, path string) (*controllers.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	return uploads.PreparePhoto(filepath.Base(path), f)
}

// rangeFlags parses --from and --to as local dates.
type rangeFlags struct {
	from, to string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&r.to, "to", "", "last day, YYYY-MM-DD")
}

func (r *rangeFlags) parse() (entity.AttendanceRange, error) {
	var rng entity.AttendanceRange

	for _, p := range []struct {
		name, value string
		dest        *time.Time
	}{
		{"from", r.from, &rng.StartDate},
		{"to", r.to, &rng.EndDate},
	} {
		if p.value == "" {
			continue
		}

		t, err := time.ParseInLocation(dateLayout, p.value, time.Local)
		if err != nil {
			return rng, fmt.Errorf("--%s must look like %s", p.name, dateLayout)
		}
		*p.dest = t
	}

	if !rng.StartDate.IsZero() && !rng.EndDate.IsZero() && rng.EndDate.Before(rng.StartDate) {
		return rng, errors.New("--to is before --from")
	}

	return rng, nil
}

func newHistoryCmd(get func() *app) *cobra.Command {
	var (
		rf          rangeFlags
		employeeID  string
		everyone    bool
		page, limit int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List attendance, your own unless --employee or --everyone is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()

			rng, err := rf.parse()
			if err != nil {
				return err
			}

			if (employeeID != "" || everyone) && !a.deps.Session.Identity().HasAnyRole(api.EmployeeRoles...) {
				return errors.New("only HR and admins can read other employees' attendance")
			}

			var result *entity.Page[entity.Attendance]
			switch {
			case everyone:
				result, err = a.ctrls.AttendanceController.All(cmd.Context(), rng, page, limit)
			default:
				id := employeeID
				if id == "" {
					if id, err = a.deps.Session.EmployeeID(); err != nil {
						return errNotSignedIn
					}
				}
				result, err = a.ctrls.AttendanceController.History(cmd.Context(), id, rng, page, limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}

			if err = printAttendances(cmd.OutOrStdout(), result.Items, time.Local); err != nil {
				return err
			}

			return printMeta(cmd.OutOrStdout(), result.Meta)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id (HR and admins)")
	cmd.Flags().BoolVar(&everyone, "everyone", false, "all employees (HR and admins)")
	cmd.Flags().IntVar(&page, "page", controllers.DefaultPage, "page number")
	cmd.Flags().IntVar(&limit, "limit", controllers.DefaultLimit, "page size")
	cmd.MarkFlagsMutuallyExclusive("employee", "everyone")

	return cmd
}

func newExportCmd(get func() *app) *cobra.Command {
	var (
		rf         rangeFlags
		employeeID string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write attendance to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()

			rng, err := rf.parse()
			if err != nil {
				return err
			}

			var records []entity.Attendance
			if employeeID == "" {
				records, err = a.ctrls.AttendanceController.Mine(cmd.Context(), rng)
			} else {
				if !a.deps.Session.Identity().HasAnyRole(api.EmployeeRoles...) {
					return errors.New("only HR and admins can export other employees' attendance")
				}
				records, err = collectHistory(cmd, a.ctrls.AttendanceController, employeeID, rng)
			}
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}

			if err = report.WriteAttendance(f, records, time.Local); err != nil {
				_ = f.Close()
				return fmt.Errorf("write report: %w", err)
			}

			if err = f.Close(); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Wrote %d records to %s", len(records), out)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id (HR and admins)")
	cmd.Flags().StringVarP(&out, "output", "o", "attendance.xlsx", "workbook path")

	return cmd
}

func collectHistory(cmd *cobra.Command, ctrl *controllers.AttendanceController, employeeID string, rng entity.AttendanceRange) ([]entity.Attendance, error) {
	p := controllers.NewPagination(controllers.DefaultPage, exportPageSize)

	var records []entity.Attendance
	for {
		result, err := ctrl.History(cmd.Context(), employeeID, rng, p.Page(), p.Limit())
		if err != nil {
			return nil, err
		}

		records = append(records, result.Items...)
		if !result.Meta.HasNextPage || len(result.Items) == 0 {
			return records, nil
		}

		p.NextPage()
	}
}
