package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/keystorm-debug/internal/integration/debug/adapters"
)

func newToolsCommand(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the debug adapter tools in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, path, err := s.catalog()
			if err != nil {
				return err
			}
			lang := s.String("language")
			list := func() []adapters.Tool {
				if lang != "" {
					return catalog.ToolsForLanguage(lang)
				}
				return catalog.Tools()
			}
			if err := printTools(cmd, list()); err != nil {
				return err
			}
			if path == "" || !s.Bool("watch") {
				return nil
			}

			log, err := s.logger()
			if err != nil {
				return err
			}
			defer log.Flush()
			changed := make(chan struct{}, 1)
			err = catalog.Watch(cmd.Context(), path, log.WithName("catalog"), func([]adapters.Tool) {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			if err != nil {
				return err
			}
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-changed:
					fmt.Fprintln(cmd.OutOrStdout())
					if err := printTools(cmd, list()); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringP("language", "l", "", "only list tools for this language id")
	cmd.Flags().BoolP("watch", "w", false, "reprint the list whenever the catalog file changes")
	return cmd
}

func printTools(cmd *cobra.Command, tools []adapters.Tool) error {
	if len(tools) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "no tools")
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tLANGUAGES\tCONFIGURATIONS")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.Name, t.Type, strings.Join(t.Languages, ","), strings.Join(t.ConfigurationNames(), ", "))
	}
	return w.Flush()
}
