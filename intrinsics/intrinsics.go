// Package intrinsics provides the CloudFormation intrinsic functions used by
// the pipeline resources.
//
// The core types are re-exported from cloudformation-schema-go:
//
//	Ref{LogicalName: "MyFnFunction"}        → {"Ref": "MyFnFunction"}
//	GetAtt{LogicalName: "Repo", Attribute: "Arn"} → {"Fn::GetAtt": ["Repo", "Arn"]}
//	Sub{String: "arn:${AWS::Partition}:logs:*"}    → {"Fn::Sub": "..."}
//	Join{Delimiter: "", Values: []any{...}}         → {"Fn::Join": ["", [...]]}
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// Any creates a []any slice from the given items.
func Any(items ...any) []any {
	return items
}

// Arn returns the Fn::GetAtt reference to a resource's Arn attribute.
func Arn(logicalName string) GetAtt {
	return GetAtt{LogicalName: logicalName, Attribute: "Arn"}
}
