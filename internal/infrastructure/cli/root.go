package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/doeshing/orca-go/internal/app"
	"github.com/doeshing/orca-go/internal/application/orchestrator"
	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/version"
)

// ErrCommandFailed is returned after an error response has been rendered.
var ErrCommandFailed = errors.New("command failed")

// Builder constructs the container once flags are parsed.
type Builder func(ctx context.Context, opts app.Options) (*app.Container, error)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	Build   Builder
}

// NewRootCmd wires the cobra root command. Everything after the first
// positional argument belongs to the dispatched command, flags included.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Build == nil {
		opts.Build = app.BuildContainer
	}
	var (
		configPath string
		role       string
		user       string
		pretty     bool
		verbose    = opts.Verbose
	)

	root := &cobra.Command{
		Use:   "orca [flags] <command> [args...]",
		Short: "ORCA - self-repairing command orchestrator",
		Long: "ORCA runs role-checked commands, snapshots each attempt, " +
			"classifies failures and retries with a repaired plan.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			container, err := opts.Build(cmd.Context(), app.Options{ConfigPath: configPath, Verbose: verbose})
			if err != nil {
				resp := domain.Response{Status: domain.StatusError, Command: args[0], Message: err.Error()}
				if renderErr := RenderResponse(cmd.OutOrStdout(), resp, pretty); renderErr != nil {
					return renderErr
				}
				return ErrCommandFailed
			}
			defer container.Close()

			actor := container.Session.Current()
			if role != "" {
				actor.Role = role
			}
			if user != "" {
				actor.User = user
			}

			resp := container.Orchestrator.Handle(cmd.Context(), orchestrator.Request{
				Command: args[0],
				Args:    args[1:],
				Actor:   actor,
			})
			if err := RenderResponse(cmd.OutOrStdout(), resp, pretty); err != nil {
				return err
			}
			if resp.Status != domain.StatusSuccess {
				return ErrCommandFailed
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().SetInterspersed(false)

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.orca/config.yaml, or $ORCA_CONFIG)")
	flags.StringVar(&role, "role", os.Getenv("ORCA_ROLE"), "Run as this role for one invocation (env ORCA_ROLE)")
	flags.StringVar(&user, "user", os.Getenv("ORCA_USER"), "Run as this user for one invocation (env ORCA_USER)")
	flags.BoolVar(&pretty, "pretty", false, "Indent the JSON response")
	flags.BoolVarP(&verbose, "verbose", "v", opts.Verbose, "Enable debug logging on stderr")

	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show ORCA version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayVersionInformation(cmd.OutOrStdout())
		},
	}
}

func displayVersionInformation(out io.Writer) error {
	fmt.Fprintf(out, "ORCA version %s\n", version.Version)

	if version.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", version.Commit)
	}

	if version.BuildDate != "" {
		fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
	}

	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())

	return nil
}
