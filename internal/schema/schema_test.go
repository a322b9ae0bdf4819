package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/pipeline"
	"github.com/lex00/cicd-lambda-go/internal/template"
)

func TestValidateTemplate_Pipeline(t *testing.T) {
	p, err := pipeline.New("MyFn", pipeline.Parameters{
		Lambda: pipeline.LambdaParameters{Handler: "manage.runner", Runtime: "python3.12"},
	})
	require.NoError(t, err)

	b := template.NewBuilder()
	require.NoError(t, p.Synthesize(b))
	tmpl, err := b.Build()
	require.NoError(t, err)

	result := ValidateTemplate(tmpl)
	assert.True(t, result.Valid(), "%v", result.Errors)
	for _, w := range result.Warnings {
		assert.NotEqual(t, "unknown property", w.Message, w.String())
		assert.NotContains(t, w.Message, "unknown resource type", w.String())
	}
}

func TestValidateTemplate_MissingRequired(t *testing.T) {
	tmpl := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function", Properties: map[string]any{"Handler": "index.handler"}},
	}}

	result := ValidateTemplate(tmpl)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Code", result.Errors[0].Property)
	assert.Equal(t, "Role", result.Errors[1].Property)
	assert.Equal(t, "Fn.Code: missing required property: Code", result.Errors[0].String())
}

func TestValidateTemplate_Types(t *testing.T) {
	tmpl := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function", Properties: map[string]any{
			"Code":       map[string]any{"ZipFile": "x"},
			"Role":       map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
			"MemorySize": "large",
			"Timeout":    float64(30),
			"Extra":      true,
		}},
	}}

	result := ValidateTemplate(tmpl)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "MemorySize", result.Errors[0].Property)
	assert.Equal(t, "expected type Integer", result.Errors[0].Message)

	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "Extra", result.Warnings[0].Property)
}

func TestValidateTemplate_RetiredRuntime(t *testing.T) {
	tmpl := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Old": {Type: "AWS::Lambda::Function", Properties: map[string]any{
			"Code": map[string]any{"ZipFile": "x"}, "Role": "arn", "Runtime": "python3.6",
		}},
		"New": {Type: "AWS::Lambda::Function", Properties: map[string]any{
			"Code": map[string]any{"ZipFile": "x"}, "Role": "arn", "Runtime": "python3.12",
		}},
	}}

	result := ValidateTemplate(tmpl)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Old", result.Errors[0].Resource)
	assert.Equal(t, "Runtime", result.Errors[0].Property)
	assert.Contains(t, result.Errors[0].Message, "retired")
}

func TestValidateTemplate_DefaultRuntimeIsCurrent(t *testing.T) {
	p, err := pipeline.New("MyFn", pipeline.Parameters{
		Lambda: pipeline.LambdaParameters{Handler: "manage.runner"},
	})
	require.NoError(t, err)

	b := template.NewBuilder()
	require.NoError(t, p.Synthesize(b))
	tmpl, err := b.Build()
	require.NoError(t, err)

	assert.True(t, ValidateTemplate(tmpl).Valid())
}

func TestValidateTemplate_CustomResources(t *testing.T) {
	tmpl := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Good": {Type: "Custom::InitialCommit", Properties: map[string]any{"ServiceToken": "arn"}},
		"Bad":  {Type: "Custom::InitialCommit", Properties: map[string]any{}},
	}}

	result := ValidateTemplate(tmpl)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Bad", result.Errors[0].Resource)
	assert.Equal(t, "ServiceToken", result.Errors[0].Property)
}

func TestValidateTemplate_UnknownType(t *testing.T) {
	tmpl := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Queue": {Type: "AWS::SQS::Queue"},
		"Odd":   {Type: "Bogus"},
	}}

	result := ValidateTemplate(tmpl)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Odd", result.Errors[0].Resource)
	require.Len(t, result.Warnings, 1)
	assert.True(t, strings.HasPrefix(result.Warnings[0].Message, "unknown resource type"))
}

func TestIsValidResourceType(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"AWS::Lambda::Function", true},
		{"Custom::InitialCommit", true},
		{"Custom::", false},
		{"AWS::Lambda", false},
		{"Foo::Bar::Baz", false},
		{"AWS::::Function", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isValidResourceType(tt.in), tt.in)
	}
}

func TestIsValidType(t *testing.T) {
	assert.True(t, isValidType(map[string]any{"Ref": "X"}, Integer))
	assert.True(t, isValidType(float64(3), Integer))
	assert.False(t, isValidType(3.5, Integer))
	assert.True(t, isValidType(3.5, Number))
	assert.True(t, isValidType([]any{}, List))
	assert.False(t, isValidType("x", Map))
	assert.True(t, isValidType("anything", JSON))
}
