// Package config loads pipeline definitions from YAML files.
//
// A file is converted to JSON, validated against an embedded JSON schema and
// decoded into pipeline parameters:
//
//	prefix: MyFn
//	pipeline:
//	  ssh:
//	    secret:
//	      id: bitbucket-key
//	      arn: arn:aws:secretsmanager:eu-west-1:123456789012:secret:bitbucket-key
//	  installArgs: [--no-cache-dir]
//	lambda:
//	  handler: manage.runner
//	  memory: 256
//	  timeout: 30
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"

	"github.com/lex00/cicd-lambda-go/internal/pipeline"
)

// ErrInvalidConfig wraps every schema or decoding failure.
var ErrInvalidConfig = errors.New("invalid config")

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://cicd-lambda.local/config.schema.json"

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

// File is the decoded configuration file.
type File struct {
	Prefix      string          `json:"prefix"`
	Description string          `json:"description,omitempty"`
	PipelineCfg PipelineSection `json:"pipeline,omitempty"`
	Lambda      LambdaSection   `json:"lambda"`
	VPC         *VPCSection     `json:"vpc,omitempty"`
}

// PipelineSection configures how the function is built and tested.
type PipelineSection struct {
	ArtifactsBucketName string     `json:"artifactsBucketName,omitempty"`
	SSH                 SSHSection `json:"ssh,omitempty"`
	InstallArgs         []string   `json:"installArgs,omitempty"`
	TestArgs            []string   `json:"testArgs,omitempty"`
	StrictCredentials   bool       `json:"strictCredentials,omitempty"`
}

// SSHSection selects at most one SSH key source for private dependencies.
type SSHSection struct {
	Secret *SecretSection `json:"secret,omitempty"`
	Key    string         `json:"key,omitempty"`
}

// SecretSection references a Secrets Manager secret holding an SSH private key.
type SecretSection struct {
	ID        string `json:"id"`
	Arn       string `json:"arn"`
	KMSKeyArn string `json:"kmsKeyArn,omitempty"`
}

// LambdaSection configures the deployed function.
type LambdaSection struct {
	ExecutionRoleArn string            `json:"executionRoleArn,omitempty"`
	Memory           int               `json:"memory,omitempty"`
	Timeout          int               `json:"timeout,omitempty"`
	Handler          string            `json:"handler"`
	Runtime          string            `json:"runtime,omitempty"`
	Environment      map[string]string `json:"environment,omitempty"`
	AlarmsTopicArn   string            `json:"alarmsTopicArn,omitempty"`
}

// VPCSection places the function in existing subnets and security groups.
type VPCSection struct {
	SubnetIDs        []string `json:"subnetIds"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse validates and decodes YAML (or JSON) configuration content.
func Parse(content []byte) (*File, error) {
	sch, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("loading config schema: %w", err)
	}

	jsonData, err := yaml.YAMLToJSON(content)
	if err != nil {
		return nil, fmt.Errorf("%w: convert yaml to json: %v", ErrInvalidConfig, err)
	}

	var document any
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	canonicalizeEnv(document)

	if err := sch.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	normalized, err := json.Marshal(document)
	if err != nil {
		return nil, err
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &f, nil
}

// Parameters converts the file to pipeline parameters.
func (f *File) Parameters() pipeline.Parameters {
	params := pipeline.Parameters{
		Pipeline: pipeline.PipelineParameters{
			ArtifactsBucketName: f.PipelineCfg.ArtifactsBucketName,
			SSH:                 pipeline.SSHParameters{Key: f.PipelineCfg.SSH.Key},
			InstallArgs:         f.PipelineCfg.InstallArgs,
			TestArgs:            f.PipelineCfg.TestArgs,
			StrictCredentials:   f.PipelineCfg.StrictCredentials,
		},
		Lambda: pipeline.LambdaParameters{
			ExecutionRoleArn: f.Lambda.ExecutionRoleArn,
			Memory:           f.Lambda.Memory,
			Timeout:          f.Lambda.Timeout,
			Handler:          f.Lambda.Handler,
			Runtime:          f.Lambda.Runtime,
			Environment:      f.Lambda.Environment,
			AlarmsTopicArn:   f.Lambda.AlarmsTopicArn,
		},
	}
	if s := f.PipelineCfg.SSH.Secret; s != nil {
		params.Pipeline.SSH.Secret = &pipeline.AWSSecret{ID: s.ID, Arn: s.Arn, KMSKeyArn: s.KMSKeyArn}
	}
	if f.VPC != nil {
		params.VPC = &pipeline.VpcParameters{
			SubnetIDs:        f.VPC.SubnetIDs,
			SecurityGroupIDs: f.VPC.SecurityGroupIDs,
		}
	}
	return params
}

// Pipeline builds the pipeline described by the file.
func (f *File) Pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(f.Prefix, f.Parameters())
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// canonicalizeEnv turns scalar environment values into strings, since YAML
// authors write `TIMEOUT: 30` where Lambda expects "30".
func canonicalizeEnv(document any) {
	root, ok := document.(map[string]any)
	if !ok {
		return
	}
	lambdaObj, ok := root["lambda"].(map[string]any)
	if !ok {
		return
	}
	env, ok := lambdaObj["environment"].(map[string]any)
	if !ok {
		return
	}
	for key, value := range env {
		switch value.(type) {
		case map[string]any, []any, nil:
			continue
		}
		env[key] = fmt.Sprint(value)
	}
}
