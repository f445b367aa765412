package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
	"github.com/openfroyo/dsce/pkg/invoke"
)

// runResourceOp is shared by get/set/test/export: resolve resourceType
// against the discovery index, read its property bag from stdin, and
// invoke op directly against the resource — no configuration document,
// parameters, or variables involved, matching the single-resource CLI
// surface spec.md §6.3 describes.
func runResourceOp(ctx context.Context, op, resourceType string) (*invoke.Result, error) {
	root, err := effectiveConfigRoot()
	if err != nil {
		return nil, err
	}

	idx, cache, err := openIndex(ctx, root, noCache)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		defer cache.Close()
	}

	m, err := idx.Resolve(ctx, resourceType)
	if err != nil {
		return nil, err
	}

	raw, err := readPropertiesFromStdin()
	if err != nil {
		return nil, dscerr.Parse("stdin input could not be read", err)
	}

	props, err := expr.FromJSON(raw)
	if err != nil {
		return nil, err
	}

	inv := &invoke.Invoker{ResourceName: resourceType}
	return inv.Invoke(ctx, m, op, props)
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource>",
		Short: "Inspect a resource instance's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runResourceOp(cmd.Context(), "get", args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"actualState": result.AfterState})
		},
	}
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <resource>",
		Short: "Enforce a resource instance's desired state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runResourceOp(cmd.Context(), "set", args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"beforeState":       result.BeforeState,
				"afterState":        result.AfterState,
				"changedProperties": result.ChangedProperties,
			})
		},
	}
}

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <resource>",
		Short: "Compare a resource instance against a desired state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runResourceOp(cmd.Context(), "test", args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"expectedState":     result.Expected,
				"actualState":       result.AfterState,
				"changedProperties": result.ChangedProperties,
				"inDesiredState":    len(result.ChangedProperties) == 0,
			})
		},
	}
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <resource>",
		Short: "Enumerate every instance of a resource type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runResourceOp(cmd.Context(), "export", args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"resources": result.ExportedStates})
		},
	}
}

func newFlushCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flushcache",
		Short: "Discard the discovery cache and force a fresh scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := effectiveConfigRoot()
			if err != nil {
				return err
			}
			_, cache, err := openIndex(cmd.Context(), root, false)
			if err != nil {
				return err
			}
			defer cache.Close()
			if err := cache.Flush(cmd.Context()); err != nil {
				return err
			}
			return discoveryFlushed()
		},
	}
}

func discoveryFlushed() error {
	return printJSON(map[string]interface{}{"status": "flushed"})
}
