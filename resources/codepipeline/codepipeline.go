// Package codepipeline contains AWS::CodePipeline resource types.
package codepipeline

// Pipeline is an AWS::CodePipeline::Pipeline.
type Pipeline struct {
	ArtifactStore Pipeline_ArtifactStore `json:"ArtifactStore"`
	Name          any                    `json:"Name,omitempty"`
	RoleArn       any                    `json:"RoleArn"`
	Stages        []Pipeline_Stage       `json:"Stages"`
}

// ResourceType returns the CloudFormation type.
func (Pipeline) ResourceType() string { return "AWS::CodePipeline::Pipeline" }

type Pipeline_ArtifactStore struct {
	Location any    `json:"Location"`
	Type     string `json:"Type"`
}

type Pipeline_Stage struct {
	Actions []Pipeline_Action `json:"Actions"`
	Name    string            `json:"Name"`
}

// Pipeline_Action is one step within a stage.
type Pipeline_Action struct {
	ActionTypeId    Pipeline_ActionTypeId `json:"ActionTypeId"`
	Configuration   map[string]any        `json:"Configuration,omitempty"`
	InputArtifacts  []Pipeline_Artifact   `json:"InputArtifacts,omitempty"`
	Name            string                `json:"Name"`
	OutputArtifacts []Pipeline_Artifact   `json:"OutputArtifacts,omitempty"`
	RunOrder        int                   `json:"RunOrder,omitempty"`
}

type Pipeline_ActionTypeId struct {
	Category string `json:"Category"`
	Owner    string `json:"Owner"`
	Provider string `json:"Provider"`
	Version  string `json:"Version"`
}

type Pipeline_Artifact struct {
	Name string `json:"Name"`
}

// Action categories and owners.
const (
	CategorySource = "Source"
	CategoryBuild  = "Build"
	OwnerAWS       = "AWS"
)
