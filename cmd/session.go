package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(get func() *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()

			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				email = prompt(cmd.OutOrStdout(), in, "Email: ")
			}
			if password == "" {
				password = prompt(cmd.OutOrStdout(), in, "Password: ")
			}

			id, err := a.ctrls.AuthController.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Signed in as %s (%s)", id.Name, strings.Join(id.Roles, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password, read from stdin when empty")

	return cmd
}

func prompt(w io.Writer, r *bufio.Reader, label string) string {
	fmt.Fprint(w, label)

	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func newLogoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := get().ctrls.AuthController.Logout(cmd.Context()); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(get func() *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.requireAuth(); err != nil {
				return err
			}

			id := a.deps.Session.Identity()
			id.AccessToken = ""

			if asJSON {
				return printJSON(cmd.OutOrStdout(), id)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "ID:\t%s\n", id.ID)
			fmt.Fprintf(tw, "Name:\t%s\n", id.Name)
			fmt.Fprintf(tw, "Email:\t%s\n", id.Email)
			fmt.Fprintf(tw, "Roles:\t%s\n", strings.Join(id.Roles, ", "))

			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}
