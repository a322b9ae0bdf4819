package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/config"
	"github.com/lex00/cicd-lambda-go/internal/pipeline"
	"github.com/lex00/cicd-lambda-go/internal/template"
)

func newBuildCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
		asResult     bool
	)

	cmd := &cobra.Command{
		Use:   "build <config>",
		Short: "Generate the CloudFormation template",
		Long: `Build reads a pipeline configuration and generates the CloudFormation template.

Examples:
    cicd-lambda build pipeline.yaml
    cicd-lambda build pipeline.yaml -o template.json
    cicd-lambda build pipeline.yaml --format yaml
    cicd-lambda build pipeline.yaml --result        # JSON result envelope`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildPipeline(args[0])
			if asResult {
				return outputBuildResult(cmd.OutOrStdout(), built, err, outputFile)
			}
			if err != nil {
				return err
			}
			data, err := encodeTemplate(built.template, outputFormat)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outputFile, data)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&asResult, "result", false, "Wrap the template in a JSON result with the resource list and errors")

	return cmd
}

// outputBuildResult reports a build as a cicd.BuildResult. A failed build
// still prints the result before returning an error.
func outputBuildResult(stdout io.Writer, built *builtPipeline, buildErr error, outputFile string) error {
	result := cicd.BuildResult{Success: buildErr == nil}
	if buildErr != nil {
		result.Errors = []string{buildErr.Error()}
	} else {
		result.Template = *built.template
		result.Resources = built.resources()
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := writeOutput(stdout, outputFile, data); err != nil {
		return err
	}
	if buildErr != nil {
		return errors.New("build failed")
	}
	return nil
}

// builtPipeline is a configuration carried through to its template.
type builtPipeline struct {
	config   *config.File
	pipeline *pipeline.Pipeline
	template *cicd.Template
}

// resources returns the logical ids in dependency order.
func (b *builtPipeline) resources() []string {
	order, err := template.Order(b.template)
	if err != nil {
		order = make([]string, 0, len(b.template.Resources))
		for name := range b.template.Resources {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	return order
}

func buildPipeline(configPath string) (*builtPipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	p, err := cfg.Pipeline()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	b := template.NewBuilder()
	desc := cfg.Description
	if desc == "" {
		desc = fmt.Sprintf("CI/CD pipeline for Lambda function %s.", p.Prefix())
	}
	b.SetDescription(desc)

	if err := p.Synthesize(b); err != nil {
		return nil, err
	}

	tmpl, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building template: %w", err)
	}

	slog.Debug("built template", "config", configPath, "prefix", p.Prefix(), "resources", len(tmpl.Resources))
	return &builtPipeline{config: cfg, pipeline: p, template: tmpl}, nil
}

func encodeTemplate(t *cicd.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(t)
	case "yaml":
		return template.ToYAML(t)
	}
	return nil, fmt.Errorf("unknown format: %s", format)
}

// writeOutput prints data to stdout or atomically replaces outputFile.
func writeOutput(stdout io.Writer, outputFile string, data []byte) error {
	if outputFile == "" {
		_, err := fmt.Fprintln(stdout, string(data))
		return err
	}
	if err := renameio.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	slog.Info("wrote output", "path", outputFile, "bytes", len(data))
	return nil
}
