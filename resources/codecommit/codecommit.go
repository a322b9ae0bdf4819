// Package codecommit contains AWS::CodeCommit resource types.
package codecommit

// Repository is an AWS::CodeCommit::Repository.
type Repository struct {
	RepositoryName        any `json:"RepositoryName,omitempty"`
	RepositoryDescription any `json:"RepositoryDescription,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Repository) ResourceType() string { return "AWS::CodeCommit::Repository" }

// Attributes exposed through Fn::GetAtt.
const (
	AttrArn          = "Arn"
	AttrCloneUrlHttp = "CloneUrlHttp"
	AttrCloneUrlSsh  = "CloneUrlSsh"
	AttrName         = "Name"
)
