// Package validation checks generated templates.
//
// Two layers are applied:
//   - CheckLimits: CloudFormation service quotas the template must respect
//   - cfn-lint-go: schema and best-practice rules (library dependency)
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/template"
)

// CloudFormation quotas checked by CheckLimits.
const (
	MaxResources        = 500
	MaxOutputs          = 200
	MaxTemplateBodySize = 51200
	MaxS3TemplateSize   = 1024 * 1024
	MaxInlineCodeSize   = 4096
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// LimitsResult lists quota violations. Warnings do not block deployment but
// change how the template must be deployed.
type LimitsResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// CheckLimits verifies the template against CloudFormation quotas.
func CheckLimits(t *cicd.Template) (*LimitsResult, error) {
	result := &LimitsResult{Errors: []string{}, Warnings: []string{}}

	if n := len(t.Resources); n > MaxResources {
		result.Errors = append(result.Errors, fmt.Sprintf("template has %d resources, limit is %d", n, MaxResources))
	}
	if n := len(t.Outputs); n > MaxOutputs {
		result.Errors = append(result.Errors, fmt.Sprintf("template has %d outputs, limit is %d", n, MaxOutputs))
	}

	body, err := template.ToJSON(t)
	if err != nil {
		return nil, fmt.Errorf("serializing template: %w", err)
	}
	switch size := len(body); {
	case size > MaxS3TemplateSize:
		result.Errors = append(result.Errors, fmt.Sprintf("template is %d bytes, limit is %d", size, MaxS3TemplateSize))
	case size > MaxTemplateBodySize:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("template is %d bytes, above the %d byte inline limit; deploy it from S3", size, MaxTemplateBodySize))
	}

	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := t.Resources[name]
		if def.Type != "AWS::Lambda::Function" {
			continue
		}
		code, _ := def.Properties["Code"].(map[string]any)
		if zip, ok := code["ZipFile"].(string); ok && len(zip) > MaxInlineCodeSize {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: inline code is %d bytes, limit is %d", name, len(zip), MaxInlineCodeSize))
		}
	}

	return result, nil
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0

	return result, nil
}

// LintTemplate writes t to a temporary file and lints it.
func LintTemplate(t *cicd.Template) (*CfnLintResult, error) {
	body, err := template.ToYAML(t)
	if err != nil {
		return nil, fmt.Errorf("serializing template: %w", err)
	}

	dir, err := os.MkdirTemp("", "cicd-lambda-lint-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "template.yaml")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	return RunCfnLint(path)
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}
