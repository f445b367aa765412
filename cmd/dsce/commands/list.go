package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [filter]",
		Short: "List discovered resource types",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := effectiveConfigRoot()
			if err != nil {
				return err
			}
			idx, cache, err := openIndex(cmd.Context(), root, noCache)
			if err != nil {
				return err
			}
			if cache != nil {
				defer cache.Close()
			}

			var filter string
			if len(args) == 1 {
				filter = args[0]
			}

			types := idx.Types()
			var matched []string
			for _, t := range types {
				if filter == "" || strings.Contains(t, filter) {
					matched = append(matched, t)
				}
			}

			if jsonOutput {
				return printJSON(matched)
			}
			for _, t := range matched {
				fmt.Println(t)
			}
			return nil
		},
	}
	return cmd
}
