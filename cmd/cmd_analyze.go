package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"estate-assistant/internal/nlu"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "analyze [message]",
		Short:             "Print the intent, entities and response plan for a message",
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := nlu.New().Analyze(strings.Join(args, " "))
			out := map[string]any{
				"intent":        a.Intent,
				"confidence":    a.Confidence,
				"entities":      a.Entities,
				"plan":          nlu.Plan(a),
				"qualification": nlu.ExtractLeadQualification(a.Entities),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			return nil
		},
	}
}
