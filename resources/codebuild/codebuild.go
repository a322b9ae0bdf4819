// Package codebuild contains AWS::CodeBuild resource types.
package codebuild

// Project is an AWS::CodeBuild::Project.
type Project struct {
	Artifacts   Project_Artifacts   `json:"Artifacts"`
	Description any                 `json:"Description,omitempty"`
	Environment Project_Environment `json:"Environment"`
	Name        any                 `json:"Name,omitempty"`
	ServiceRole any                 `json:"ServiceRole"`
	Source      Project_Source      `json:"Source"`
}

// ResourceType returns the CloudFormation type.
func (Project) ResourceType() string { return "AWS::CodeBuild::Project" }

type Project_Artifacts struct {
	Type string `json:"Type"`
}

// Project_Environment selects the build container.
type Project_Environment struct {
	ComputeType    string `json:"ComputeType"`
	Image          string `json:"Image"`
	PrivilegedMode bool   `json:"PrivilegedMode,omitempty"`
	Type           string `json:"Type"`
}

// Project_Source carries the inline buildspec. BuildSpec is the buildspec
// serialized as a string.
type Project_Source struct {
	BuildSpec any    `json:"BuildSpec,omitempty"`
	Type      string `json:"Type"`
}

// Values used by a project that runs inside CodePipeline.
const (
	TypeCodePipeline   = "CODEPIPELINE"
	TypeLinuxContainer = "LINUX_CONTAINER"
	ComputeSmall       = "BUILD_GENERAL1_SMALL"
	ImageStandard7     = "aws/codebuild/standard:7.0"
)

const AttrArn = "Arn"
