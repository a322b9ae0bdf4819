package pipeline

import (
	"regexp"
	"strings"
)

var (
	wordBoundary  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerToUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	prefixPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)
)

// BucketName converts a CamelCase name to lower kebab case, which S3 accepts.
//
//	MyFnCiCdLambdaArtifactsBucket → my-fn-ci-cd-lambda-artifacts-bucket
func BucketName(name string) string {
	s := wordBoundary.ReplaceAllString(name, "${1}-${2}")
	return strings.ToLower(lowerToUpper.ReplaceAllString(s, "${1}-${2}"))
}

// Names holds the logical ids of every resource a pipeline creates.
type Names struct {
	Repository     string
	Function       string
	ExecutionRole  string
	ErrorsAlarm    string
	ThrottlesAlarm string
	Bucket         string
	BuildRole      string
	BuildPolicy    string
	BuildProject   string
	CommitRole     string
	CommitPolicy   string
	CommitProvider string
	CommitResource string
	PipelineRole   string
	Pipeline       string
	SourceArtifact string
	SourceRule     string
	SourceRuleRole string
}

// NamesFor derives the logical ids for prefix.
func NamesFor(prefix string) Names {
	p := prefix + "CiCdLambda"
	return Names{
		Repository:     p + "CodeCommitRepo",
		Function:       prefix + "Function",
		ExecutionRole:  prefix + "FunctionExecutionRole",
		ErrorsAlarm:    prefix + "ErrorsCountAlarm",
		ThrottlesAlarm: prefix + "ThrottlesAlarm",
		Bucket:         p + "DeploymentBucket",
		BuildRole:      p + "CodeBuildRole",
		BuildPolicy:    p + "CodeBuildPolicy",
		BuildProject:   p + "CodeBuildProject",
		CommitRole:     p + "CustomCommitRole",
		CommitPolicy:   p + "CustomCommitPolicy",
		CommitProvider: p + "CustomCommitProvider",
		CommitResource: p + "CustomCommitResource",
		PipelineRole:   p + "PipelineRole",
		Pipeline:       p + "Pipeline",
		SourceArtifact: p + "SourceArtifact",
		SourceRule:     p + "SourceEventRule",
		SourceRuleRole: p + "SourceEventRole",
	}
}
