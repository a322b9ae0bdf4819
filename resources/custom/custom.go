// Package custom contains custom resource types backed by a provider function.
package custom

// InitialCommit is a Custom::InitialCommit resource. Its provider creates the
// first commit on a branch of an empty CodeCommit repository.
type InitialCommit struct {
	ServiceToken   any       `json:"ServiceToken"`
	RepositoryName any       `json:"RepositoryName"`
	BranchName     string    `json:"BranchName"`
	CommitMessage  string    `json:"CommitMessage,omitempty"`
	PutFiles       []PutFile `json:"PutFiles"`
	// PhysicalResourceId is echoed back by the provider so updates and
	// deletes are no-ops.
	PhysicalResourceId string `json:"PhysicalResourceId,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (InitialCommit) ResourceType() string { return "Custom::InitialCommit" }

// PutFile is a file written by the commit.
type PutFile struct {
	FilePath    string `json:"filePath"`
	FileMode    string `json:"fileMode,omitempty"`
	FileContent string `json:"fileContent"`
}

// FileModeNormal marks a regular, non-executable file.
const FileModeNormal = "NORMAL"
