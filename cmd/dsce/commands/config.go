package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/dsce/pkg/configure"
	"github.com/openfroyo/dsce/pkg/document"
	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/policy"
)

var policyDir string

// newConfigCommand groups the document-level operations — get/set/test
// driven by pkg/configure.Configurator over a whole configuration
// document — distinct from the root-level get/set/test commands, which
// invoke a single resource type directly with no document, parameters,
// or dependency plan involved.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Run an operation against a whole configuration document",
	}
	cmd.PersistentFlags().StringVar(&policyDir, "policy-dir", "", "directory of .rego policies gating set operations")
	cmd.AddCommand(newConfigOpCommand("get"))
	cmd.AddCommand(newConfigOpCommand("set"))
	cmd.AddCommand(newConfigOpCommand("test"))
	return cmd
}

func newConfigOpCommand(op string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <file>",
		Short: "Run " + op + " against every resource in the document, in dependency order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runConfigOp(cmd.Context(), op, args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func runConfigOp(ctx context.Context, op, path string) (*configure.OperationResult, error) {
	root, err := effectiveConfigRoot()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usage(err.Error())
	}
	cfg, err := document.Parse(data)
	if err != nil {
		return nil, err
	}

	supplied, err := readPropertiesFromStdin()
	if err != nil {
		return nil, dscerr.Parse("stdin input could not be read", err)
	}

	idx, cache, err := openIndex(ctx, root, noCache)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		defer cache.Close()
	}

	c := &configure.Configurator{
		Discoverer: idx,
		ConfigRoot: root,
	}

	if policyDir != "" {
		gate, err := loadPolicyDir(policyDir)
		if err != nil {
			return nil, err
		}
		c.Gate = gate
	}

	return c.Run(ctx, op, cfg, supplied)
}

// loadPolicyDir builds a Gate from every *.rego file under dir. dsce is a
// one-shot process, so it loads once per invocation rather than using
// pkg/policy.Loader's Watch — hot-reload is for long-running embedders
// of pkg/policy, not this CLI.
func loadPolicyDir(dir string) (*policy.Gate, error) {
	gate := policy.NewGate()
	if err := policy.NewLoader(gate, dir).Load(); err != nil {
		return nil, err
	}
	return gate, nil
}
