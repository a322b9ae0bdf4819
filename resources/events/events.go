// Package events contains AWS::Events resource types.
package events

// Rule is an AWS::Events::Rule.
type Rule struct {
	Description  any           `json:"Description,omitempty"`
	EventPattern any           `json:"EventPattern,omitempty"`
	State        string        `json:"State,omitempty"`
	Targets      []Rule_Target `json:"Targets,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Rule) ResourceType() string { return "AWS::Events::Rule" }

type Rule_Target struct {
	Arn     any    `json:"Arn"`
	Id      string `json:"Id"`
	RoleArn any    `json:"RoleArn,omitempty"`
}

const StateEnabled = "ENABLED"
