package main

import (
	"github.com/spf13/cobra"

	"github.com/lex00/cicd-lambda-go/internal/graph"
)

func newGraphCmd() *cobra.Command {
	var (
		outputFormat  string
		outputFile    string
		clusterByType bool
	)

	cmd := &cobra.Command{
		Use:   "graph <config>",
		Short: "Generate a graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies.

The output can be rendered with Graphviz:
    cicd-lambda graph pipeline.yaml | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    cicd-lambda graph pipeline.yaml -f mermaid

Examples:
    cicd-lambda graph pipeline.yaml
    cicd-lambda graph pipeline.yaml -c              # cluster by service
    cicd-lambda graph pipeline.yaml -f mermaid      # mermaid format`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := graph.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			built, err := buildPipeline(args[0])
			if err != nil {
				return err
			}

			gen := &graph.Generator{Format: format, ClusterByType: clusterByType}
			out, err := gen.GenerateString(built.template)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outputFile, []byte(out))
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVarP(&clusterByType, "cluster", "c", false, "Cluster resources by AWS service")

	return cmd
}
