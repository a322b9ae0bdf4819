package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/cicd-lambda-go/internal/differ"
)

// errTemplatesDiffer is returned with --exit-code when changes were found.
var errTemplatesDiffer = errors.New("templates differ")

func newDiffCmd() *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
		exitCode     bool
	)

	cmd := &cobra.Command{
		Use:   "diff <config> <deployed-template>",
		Short: "Compare the generated template with a deployed one",
		Long: `Diff builds the template from the configuration and compares it with an
existing template file, such as the output of
"aws cloudformation get-template --query TemplateBody".

Resources whose change forces CloudFormation to replace them are flagged.

Examples:
    cicd-lambda diff pipeline.yaml deployed.json
    cicd-lambda diff pipeline.yaml deployed.yaml --ignore-order --exit-code`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildPipeline(args[0])
			if err != nil {
				return err
			}
			generated, err := differ.Normalize(built.template)
			if err != nil {
				return err
			}
			deployed, err := differ.LoadTemplate(args[1])
			if err != nil {
				return err
			}

			result := differ.Compare(deployed, generated, differ.Options{IgnoreOrder: ignoreOrder})
			if err := outputDiff(cmd.OutOrStdout(), result, outputFormat); err != nil {
				return err
			}
			if exitCode && !result.Empty() {
				return errTemplatesDiffer
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore list element order")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with an error when the templates differ")

	return cmd
}

func outputDiff(w io.Writer, result *differ.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil

	case "text":
		if result.Empty() {
			fmt.Fprintln(w, "No changes")
			return nil
		}
		for _, e := range result.Diff.Added {
			fmt.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			marker := ""
			if e.Replacement {
				marker = " [replacement]"
			}
			fmt.Fprintf(w, "~ %s (%s)%s\n", e.Resource, e.Type, marker)
			for _, c := range e.Changes {
				fmt.Fprintf(w, "    %s\n", c)
			}
		}
		for _, c := range result.Diff.Outputs {
			fmt.Fprintf(w, "~ output %s\n", c)
		}
		s := result.Summary
		fmt.Fprintf(w, "\n%d added, %d removed, %d modified, %d outputs changed\n", s.Added, s.Removed, s.Modified, s.Outputs)
		return nil
	}
	return fmt.Errorf("unknown format: %s", format)
}
