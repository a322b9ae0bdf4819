// Package iam contains AWS::IAM resource types.
package iam

// Role is an AWS::IAM::Role.
type Role struct {
	AssumeRolePolicyDocument any           `json:"AssumeRolePolicyDocument"`
	Description              any           `json:"Description,omitempty"`
	ManagedPolicyArns        []any         `json:"ManagedPolicyArns,omitempty"`
	Policies                 []Role_Policy `json:"Policies,omitempty"`
	RoleName                 any           `json:"RoleName,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Role) ResourceType() string { return "AWS::IAM::Role" }

// Role_Policy is an inline policy embedded in a role.
type Role_Policy struct {
	PolicyDocument any `json:"PolicyDocument"`
	PolicyName     any `json:"PolicyName"`
}

// Policy is an AWS::IAM::Policy attached to one or more roles.
type Policy struct {
	PolicyDocument any   `json:"PolicyDocument"`
	PolicyName     any   `json:"PolicyName"`
	Roles          []any `json:"Roles,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Policy) ResourceType() string { return "AWS::IAM::Policy" }

const (
	AttrArn    = "Arn"
	AttrRoleId = "RoleId"
)
