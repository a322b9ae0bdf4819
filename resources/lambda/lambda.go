// Package lambda contains AWS::Lambda resource types.
package lambda

// Function is an AWS::Lambda::Function.
type Function struct {
	Code                         Function_Code         `json:"Code"`
	Description                  any                   `json:"Description,omitempty"`
	Environment                  *Function_Environment `json:"Environment,omitempty"`
	FunctionName                 any                   `json:"FunctionName,omitempty"`
	Handler                      any                   `json:"Handler,omitempty"`
	MemorySize                   int                   `json:"MemorySize,omitempty"`
	ReservedConcurrentExecutions int                   `json:"ReservedConcurrentExecutions,omitempty"`
	Role                         any                   `json:"Role"`
	Runtime                      any                   `json:"Runtime,omitempty"`
	Timeout                      int                   `json:"Timeout,omitempty"`
	VpcConfig                    *Function_VpcConfig   `json:"VpcConfig,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Function) ResourceType() string { return "AWS::Lambda::Function" }

// Function_Code holds either inline source or an S3 location.
type Function_Code struct {
	ZipFile  any `json:"ZipFile,omitempty"`
	S3Bucket any `json:"S3Bucket,omitempty"`
	S3Key    any `json:"S3Key,omitempty"`
}

// Function_Environment holds the function's environment variables.
type Function_Environment struct {
	Variables map[string]string `json:"Variables,omitempty"`
}

// Function_VpcConfig places the function in a VPC.
type Function_VpcConfig struct {
	SecurityGroupIds []string `json:"SecurityGroupIds,omitempty"`
	SubnetIds        []string `json:"SubnetIds,omitempty"`
}

// Attributes exposed through Fn::GetAtt.
const (
	AttrArn = "Arn"
)
