package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/schema"
	"github.com/lex00/cicd-lambda-go/internal/validation"
)

// errValidationFailed is returned after a failing report has been printed.
var errValidationFailed = errors.New("validation failed")

func newValidateCmd() *cobra.Command {
	var (
		outputFormat string
		runLint      bool
	)

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate the generated template",
		Long: `Validate builds the template and checks it for issues.

Checks performed:
  - Configuration: schema and parameter ranges
  - References: every Ref, GetAtt, Sub and DependsOn target exists
  - Schema: required properties, property types and enum values
  - Quotas: resource, output, body size and inline code limits
  - cfn-lint: CloudFormation rules (disable with --lint=false)

Examples:
    cicd-lambda validate pipeline.yaml
    cicd-lambda validate pipeline.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := runValidate(args[0], runLint)
			return outputValidateResult(cmd.OutOrStdout(), result, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&runLint, "lint", true, "Run cfn-lint on the generated template")

	return cmd
}

func runValidate(configPath string, runLint bool) cicd.ValidateResult {
	built, err := buildPipeline(configPath)
	if err != nil {
		return cicd.ValidateResult{Errors: []string{err.Error()}}
	}

	result := cicd.ValidateResult{Resources: len(built.template.Resources)}

	sch := schema.ValidateTemplate(built.template)
	for _, issue := range sch.Errors {
		result.Errors = append(result.Errors, issue.String())
	}
	for _, issue := range sch.Warnings {
		result.Warnings = append(result.Warnings, issue.String())
	}

	limits, err := validation.CheckLimits(built.template)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.Errors = append(result.Errors, limits.Errors...)
		result.Warnings = append(result.Warnings, limits.Warnings...)
	}

	if runLint {
		lint, err := validation.LintTemplate(built.template)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cfn-lint: %v", err))
		} else {
			result.Errors = append(result.Errors, lint.Errors...)
			result.Warnings = append(result.Warnings, lint.Warnings...)
		}
	}

	result.Success = len(result.Errors) == 0
	return result
}

func outputValidateResult(w io.Writer, result cicd.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if result.Success {
			fmt.Fprintf(w, "Validation passed: %d resources OK\n", result.Resources)
			for _, warnMsg := range result.Warnings {
				fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
			}
			return nil
		}

		fmt.Fprintln(w, "Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return errValidationFailed
	}
	return nil
}
