package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/flowdb/pkg/flowconfig"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a pipeline manifest without running it",
	Long: `Validate loads a pipeline manifest, checks it for required fields and a
well-formed schema, and wires the graph it describes — catching a bad
manifest, an undeclared port, or a cycle before the pipeline ever opens
storage.

Example:
  flowdb validate -f pipeline.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "Pipeline manifest file (required)")
	_ = validateCmd.MarkFlagRequired("file")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("file")

	m, err := flowconfig.Load(file)
	if err != nil {
		return err
	}

	graph, _, err := buildGraph(m)
	if err != nil {
		return err
	}
	if err := graph.Validate(); err != nil {
		return fmt.Errorf("flowdb: invalid pipeline graph: %w", err)
	}

	fmt.Println("✓ Manifest is valid")
	fmt.Printf("  Storage path:    %s\n", m.StoragePath)
	fmt.Printf("  Channel capacity: %d\n", m.ChannelCapacity)
	fmt.Printf("  Epoch interval:  %s\n", m.Epoch.Interval)
	fmt.Printf("  Source:          %s (%s)\n", m.Source.Type, m.Source.Path)
	fmt.Printf("  Sink:            %s\n", m.Sink.Type)
	return nil
}
