// Package commands implements the dsce cobra command tree, adapted from
// the teacher's cmd/froyo/commands/root.go: one file per subcommand, a
// package-level set of persistent flags, and an Execute entry point that
// runs the root command against a cancellable context.
package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

var (
	configRoot string
	noCache    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	root := newRootCommand(version)
	return root.ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "dsce",
		Short:   "A desired state configuration engine",
		Version: version,
		Long: `dsce discovers resource manifests, evaluates a configuration
document's embedded expression language, and invokes resources in
dependency order to inspect, enforce, compare, or enumerate system state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configRoot, "config-root", os.Getenv("DSC_CONFIG_ROOT"), "base directory for manifest discovery and relative includes")
	root.PersistentFlags().BoolVarP(&noCache, "nocache", "n", false, "force rediscovery, bypassing the discovery cache")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", true, "emit JSON output")

	root.AddCommand(newListCommand())
	root.AddCommand(newGetCommand())
	root.AddCommand(newSetCommand())
	root.AddCommand(newTestCommand())
	root.AddCommand(newExportCommand())
	root.AddCommand(newFlushCacheCommand())
	root.AddCommand(newConfigCommand())

	return root
}

func effectiveConfigRoot() (string, error) {
	if configRoot != "" {
		return configRoot, nil
	}
	return os.Getwd()
}

// ExitCodeFor maps an error returned from command execution to one of the
// exit codes spec.md §6.3 defines: 0 success, 1 invalid args, 2 DSC
// internal error, 3 invalid input, 4 code mismatch, 5 process terminated.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 5
	}

	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return 1
	}

	class, ok := dscerr.ClassOf(err)
	if !ok {
		// Unclassified errors reaching this point are cobra's own
		// flag/arg validation failures (unknown flag, wrong arg count).
		return 1
	}
	switch class {
	case dscerr.ClassParse, dscerr.ClassValidation, dscerr.ClassFunction:
		return 3
	case dscerr.ClassResource:
		var de *dscerr.Error
		if errors.As(err, &de) && de.Code == dscerr.CodeNonZeroExit {
			return 4
		}
		return 2
	default:
		return 2
	}
}

// usageError marks an error as a CLI argument-usage problem (exit code 1)
// rather than an engine-classified error.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func usage(msg string) error {
	return &usageError{err: errors.New(msg)}
}
