package main

import (
	"bufio"
	"errors"
	"strings"

	api "github.com/adamanr/hr_console/internal/api/http"
	"github.com/adamanr/hr_console/internal/controllers"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newEmployeesCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "employees",
		Aliases: []string{"emp"},
		Short:   "Manage employees (HR and admins)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}

			a := get()
			if err := a.requireAuth(); err != nil {
				return err
			}

			if !a.deps.Session.Identity().HasAnyRole(api.EmployeeRoles...) {
				return errors.New("your role cannot manage employees")
			}

			return nil
		},
	}

	cmd.AddCommand(
		newEmployeesListCmd(get),
		newEmployeesGetCmd(get),
		newEmployeesCreateCmd(get),
		newEmployeesUpdateCmd(get),
		newEmployeesDeleteCmd(get),
	)

	return cmd
}

func newEmployeesListCmd(get func() *app) *cobra.Command {
	var (
		page, limit int
		all, asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl := get().ctrls.EmployeeController
			p := controllers.NewPagination(page, limit)

			for {
				result, err := ctrl.List(cmd.Context(), p.Page(), p.Limit())
				if err != nil {
					return err
				}

				if asJSON {
					err = printJSON(cmd.OutOrStdout(), result)
				} else {
					err = printEmployees(cmd.OutOrStdout(), result)
				}
				if err != nil {
					return err
				}

				if !all || !result.Meta.HasNextPage {
					return nil
				}

				p.NextPage()
			}
		},
	}

	cmd.Flags().IntVar(&page, "page", controllers.DefaultPage, "page number")
	cmd.Flags().IntVar(&limit, "limit", controllers.DefaultLimit, "page size")
	cmd.Flags().BoolVar(&all, "all", false, "keep fetching until the last page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func newEmployeesGetCmd(get func() *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := get().ctrls.EmployeeController

			employee, err := ctrl.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if employee == nil {
				return errors.New("employee not found")
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), employee)
			}

			return printEmployee(cmd.OutOrStdout(), employee)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

// employeeFlags backs create and update. Update only sends flags that were
// set on the command line.
type employeeFlags struct {
	employeeID, name, email, password  string
	phone, department, position, joined string
	status                              string
}

func (f *employeeFlags) register(fs *pflag.FlagSet, withID bool) {
	if withID {
		fs.StringVar(&f.employeeID, "employee-id", "", "company employee number")
	}
	fs.StringVar(&f.name, "name", "", "full name")
	fs.StringVar(&f.email, "email", "", "work email")
	fs.StringVar(&f.password, "password", "", "initial password")
	fs.StringVar(&f.phone, "phone", "", "phone number")
	fs.StringVar(&f.department, "department", "", "department")
	fs.StringVar(&f.position, "position", "", "position")
	fs.StringVar(&f.joined, "join-date", "", "join date, YYYY-MM-DD")
	fs.StringVar(&f.status, "status", "", "ACTIVE, INACTIVE or ON_LEAVE")
}

func (f *employeeFlags) createRequest() entity.CreateEmployeeRequest {
	return entity.CreateEmployeeRequest{
		EmployeeID: f.employeeID,
		Name:       f.name,
		Email:      f.email,
		Password:   f.password,
		Phone:      f.phone,
		Department: f.department,
		Position:   f.position,
		JoinDate:   f.joined,
		Status:     entity.EmployeeStatus(strings.ToUpper(f.status)),
	}
}

func (f *employeeFlags) updateRequest(fs *pflag.FlagSet) entity.UpdateEmployeeRequest {
	var req entity.UpdateEmployeeRequest

	set := func(name string, value string) *string {
		if !fs.Changed(name) {
			return nil
		}
		return &value
	}

	req.Name = set("name", f.name)
	req.Email = set("email", f.email)
	req.Password = set("password", f.password)
	req.Phone = set("phone", f.phone)
	req.Department = set("department", f.department)
	req.Position = set("position", f.position)
	req.JoinDate = set("join-date", f.joined)

	if fs.Changed("status") {
		s := entity.EmployeeStatus(strings.ToUpper(f.status))
		req.Status = &s
	}

	return req
}

func newEmployeesCreateCmd(get func() *app) *cobra.Command {
	var f employeeFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			employee, err := get().ctrls.EmployeeController.Create(cmd.Context(), f.createRequest())
			if err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Created employee %s (%s)", employee.Name, employee.ID)
			return nil
		},
	}

	f.register(cmd.Flags(), true)

	return cmd
}

func newEmployeesUpdateCmd(get func() *app) *cobra.Command {
	var f employeeFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change employee fields; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			employee, err := get().ctrls.EmployeeController.Update(cmd.Context(), args[0], f.updateRequest(cmd.Flags()))
			if err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Updated employee %s", employee.Name)
			return nil
		},
	}

	f.register(cmd.Flags(), false)

	return cmd
}

func newEmployeesDeleteCmd(get func() *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer := prompt(cmd.OutOrStdout(), bufio.NewReader(cmd.InOrStdin()), "Delete employee "+args[0]+"? [y/N] ")
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					return nil
				}
			}

			if err := get().ctrls.EmployeeController.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Deleted employee %s", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
