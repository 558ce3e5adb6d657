package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"estate-assistant/internal/flow"
)

func flowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "flows",
		Short:             "List the guided conversation flows",
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTEPS\tINTERRUPTIBLE")
			reg := flow.DefaultRegistry()
			for _, s := range reg.Summaries() {
				def, _ := reg.Lookup(s.ID)
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", s.ID, s.Name, len(def.Steps), def.CanInterrupt)
			}
			return w.Flush()
		},
	}
}
