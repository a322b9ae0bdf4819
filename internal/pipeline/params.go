package pipeline

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/lex00/cicd-lambda-go/buildspec"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidPrefix    = errors.New("invalid prefix")
)

// Lambda limits.
const (
	MinMemory      = 128
	MaxMemory      = 10240
	MaxTimeout     = 900
	DefaultMemory  = 128
	DefaultTimeout = 3
)

// Parameters groups everything needed to synthesize a pipeline.
type Parameters struct {
	Pipeline PipelineParameters
	Lambda   LambdaParameters
	// VPC is optional. When nil the function runs outside a VPC.
	VPC *VpcParameters
}

// PipelineParameters configures the deployment pipeline itself.
type PipelineParameters struct {
	// ArtifactsBucketName overrides the derived artifacts bucket name. It is
	// converted to lower kebab case like the derived one.
	ArtifactsBucketName string
	SSH                 SSHParameters
	InstallArgs         []string
	TestArgs            []string
	// StrictCredentials fails the build when the SSH key cannot be installed.
	StrictCredentials bool
}

// AWSSecret points to a Secrets Manager secret holding a plaintext SSH key.
type AWSSecret struct {
	ID  string
	Arn string
	// KMSKeyArn is set when the secret is encrypted with a customer managed key.
	KMSKeyArn string
}

// SSHParameters supplies the key used to reach remote repositories during
// install. At most one of Secret and Key may be set.
type SSHParameters struct {
	Secret *AWSSecret
	Key    string
}

// Credential converts the parameters to a buildspec credential source.
func (s SSHParameters) Credential() (buildspec.CredentialSource, error) {
	var secretID string
	if s.Secret != nil {
		if s.Secret.ID == "" {
			return nil, fmt.Errorf("%w: secret id is required", ErrInvalidParameter)
		}
		if s.Secret.Arn == "" {
			return nil, fmt.Errorf("%w: secret arn is required", ErrInvalidParameter)
		}
		secretID = s.Secret.ID
	}
	return buildspec.CredentialFromOptional(secretID, s.Key)
}

// LambdaParameters describes the deployed function.
type LambdaParameters struct {
	// ExecutionRoleArn is the function's role. When empty a role with the
	// basic execution policy is created.
	ExecutionRoleArn string
	Memory           int
	Timeout          int
	Handler          string
	// Runtime defaults to buildspec.DefaultPython and also selects the
	// interpreter used to build the package.
	Runtime        string
	Environment    map[string]string
	AlarmsTopicArn string
}

// VpcParameters places the function in a VPC.
type VpcParameters struct {
	SubnetIDs        []string
	SecurityGroupIDs []string
}

var pythonRuntime = regexp.MustCompile(`^python[0-9]+(\.[0-9]+)?$`)

func (l *LambdaParameters) applyDefaults() {
	if l.Memory == 0 {
		l.Memory = DefaultMemory
	}
	if l.Timeout == 0 {
		l.Timeout = DefaultTimeout
	}
	if l.Runtime == "" {
		l.Runtime = buildspec.DefaultPython
	}
}

func (l LambdaParameters) validate() error {
	if l.Handler == "" {
		return fmt.Errorf("%w: lambda handler is required", ErrInvalidParameter)
	}
	if l.Memory < MinMemory || l.Memory > MaxMemory {
		return fmt.Errorf("%w: lambda memory %d outside [%d, %d]", ErrInvalidParameter, l.Memory, MinMemory, MaxMemory)
	}
	if l.Timeout < 1 || l.Timeout > MaxTimeout {
		return fmt.Errorf("%w: lambda timeout %d outside [1, %d]", ErrInvalidParameter, l.Timeout, MaxTimeout)
	}
	if !pythonRuntime.MatchString(l.Runtime) {
		return fmt.Errorf("%w: unsupported runtime %q", ErrInvalidParameter, l.Runtime)
	}
	return nil
}

func (v *VpcParameters) validate() error {
	if v == nil {
		return nil
	}
	if len(v.SubnetIDs) == 0 {
		return fmt.Errorf("%w: vpc requires at least one subnet", ErrInvalidParameter)
	}
	if len(v.SecurityGroupIDs) == 0 {
		return fmt.Errorf("%w: vpc requires at least one security group", ErrInvalidParameter)
	}
	return nil
}
