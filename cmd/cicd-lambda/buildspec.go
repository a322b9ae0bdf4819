package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lex00/cicd-lambda-go/buildspec"
)

func newBuildspecCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "buildspec <config>",
		Short: "Print the CodeBuild build specification",
		Long: `Buildspec prints the build specification embedded in the CodeBuild project,
for review or to run it with the CodeBuild local agent.

Examples:
    cicd-lambda buildspec pipeline.yaml
    cicd-lambda buildspec pipeline.yaml -o buildspec.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildPipeline(args[0])
			if err != nil {
				return err
			}
			data, err := encodeBuildspec(built.pipeline.Buildspec(), outputFormat)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outputFile, data)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func encodeBuildspec(spec buildspec.Spec, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return spec.ToYAML()
	case "json":
		return spec.ToJSON()
	}
	return nil, fmt.Errorf("unknown format: %s", format)
}
