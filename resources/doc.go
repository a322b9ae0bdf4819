// Package resources holds the CloudFormation resource types used by the
// CI/CD pipeline. Each subpackage maps to one AWS service namespace and every
// type implements cicd_lambda.Resource.
//
// Properties that accept intrinsic functions are typed as any so that a
// literal, an intrinsics.Ref or a cicd_lambda.AttrRef can be assigned.
package resources
