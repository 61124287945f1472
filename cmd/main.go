package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adamanr/hr_console/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)

	cleanup()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. cleanup releases what the executed
// command opened and is safe to call when nothing ran.
func newRootCmd() (*cobra.Command, func()) {
	var (
		opts options
		a    *app
	)

	root := &cobra.Command{
		Use:           "hrconsole",
		Short:         "HR console: employees and attendance from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.console = cmd.ErrOrStderr()

			var err error
			if a, err = newApp(cmd.Context(), opts); err != nil {
				return err
			}

			a.boot(cmd.Context())
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the TOML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print debug logs to stderr")

	get := func() *app { return a }

	root.AddCommand(
		newLoginCmd(get),
		newLogoutCmd(get),
		newWhoamiCmd(get),
		newEmployeesCmd(get),
		newAttendanceCmd(get),
		newServeCmd(get),
	)

	cleanup := func() {
		if a != nil {
			a.Close()
			a = nil
		}
	}

	return root, cleanup
}
