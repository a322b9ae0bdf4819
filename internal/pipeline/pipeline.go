// Package pipeline synthesizes the CloudFormation resources of a CI/CD
// pipeline for a single Lambda function.
//
// The pipeline consists of a CodeCommit repository seeded with an initial
// commit, the function itself, an artifacts bucket, a CodeBuild project that
// installs, tests, packages and deploys the function, and a CodePipeline
// triggered by pushes to the master branch. Optional CloudWatch alarms notify
// an SNS topic about errors and throttles.
package pipeline

import (
	"fmt"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/buildspec"
	"github.com/lex00/cicd-lambda-go/internal/template"
	"github.com/lex00/cicd-lambda-go/intrinsics"
	"github.com/lex00/cicd-lambda-go/resources/codebuild"
	"github.com/lex00/cicd-lambda-go/resources/codecommit"
	"github.com/lex00/cicd-lambda-go/resources/codepipeline"
	"github.com/lex00/cicd-lambda-go/resources/events"
	"github.com/lex00/cicd-lambda-go/resources/iam"
	"github.com/lex00/cicd-lambda-go/resources/lambda"
	"github.com/lex00/cicd-lambda-go/resources/s3"
)

const (
	// PlaceholderCode is the function body deployed before the first build.
	PlaceholderCode = "def runner():\n    return 'Hello, World!'"

	reservedConcurrency = 5
	maxBucketNameLength = 63
)

// Pipeline is a validated pipeline definition ready to be synthesized.
type Pipeline struct {
	prefix     string
	params     Parameters
	names      Names
	bucketName string
	spec       *buildspec.Generator
}

// New validates params and generates the buildspec. The prefix names every
// resource and is also the Lambda function name, so it must be alphanumeric.
func New(prefix string, params Parameters) (*Pipeline, error) {
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("%w: %q must be 1-64 alphanumeric characters", ErrInvalidPrefix, prefix)
	}

	params.Lambda.applyDefaults()
	if err := params.Lambda.validate(); err != nil {
		return nil, err
	}
	if err := params.VPC.validate(); err != nil {
		return nil, err
	}

	names := NamesFor(prefix)

	source := params.Pipeline.ArtifactsBucketName
	if source == "" {
		source = prefix + "CiCdLambdaArtifactsBucket"
	}
	bucket := BucketName(source)
	if len(bucket) > maxBucketNameLength {
		return nil, fmt.Errorf("%w: bucket name %q exceeds %d characters", ErrInvalidParameter, bucket, maxBucketNameLength)
	}

	cred, err := params.Pipeline.SSH.Credential()
	if err != nil {
		return nil, err
	}

	gen, err := buildspec.New(buildspec.Options{
		Target:            buildspec.ArtifactTarget{Bucket: bucket, Prefix: prefix},
		Credential:        cred,
		InstallArgs:       params.Pipeline.InstallArgs,
		TestArgs:          params.Pipeline.TestArgs,
		Python:            params.Lambda.Runtime,
		StrictCredentials: params.Pipeline.StrictCredentials,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		prefix:     prefix,
		params:     params,
		names:      names,
		bucketName: bucket,
		spec:       gen,
	}, nil
}

// Prefix returns the prefix shared by every resource.
func (p *Pipeline) Prefix() string { return p.prefix }

// Names returns the logical ids of the pipeline's resources.
func (p *Pipeline) Names() Names { return p.names }

// BucketName returns the artifacts bucket name.
func (p *Pipeline) BucketName() string { return p.bucketName }

// Buildspec returns the CodeBuild build specification.
func (p *Pipeline) Buildspec() buildspec.Spec { return p.spec.Spec() }

// Synthesize adds every resource and output of the pipeline to b.
func (p *Pipeline) Synthesize(b *template.Builder) error {
	steps := []func(*template.Builder) error{
		p.addRepository,
		p.addFunction,
		p.addAlarms,
		p.addBucket,
		p.addBuildProject,
		p.addInitialCommit,
		p.addPipeline,
		p.addSourceTrigger,
		p.addOutputs,
	}
	for _, step := range steps {
		if err := step(b); err != nil {
			return fmt.Errorf("synthesizing %s: %w", p.prefix, err)
		}
	}
	return nil
}

func (p *Pipeline) attr(resource, attribute string) cicd.AttrRef {
	return cicd.AttrRef{Resource: resource, Attribute: attribute}
}

func (p *Pipeline) addRepository(b *template.Builder) error {
	return b.Add(p.names.Repository, codecommit.Repository{
		RepositoryName:        p.names.Repository,
		RepositoryDescription: fmt.Sprintf("Source code of Lambda function %s.", p.prefix),
	})
}

func (p *Pipeline) addFunction(b *template.Builder) error {
	l := p.params.Lambda

	var role any = l.ExecutionRoleArn
	if l.ExecutionRoleArn == "" {
		managed := intrinsics.Any(intrinsics.Sub{String: "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"})
		if p.params.VPC != nil {
			managed = append(managed, intrinsics.Sub{String: "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSLambdaVPCAccessExecutionRole"})
		}
		err := b.Add(p.names.ExecutionRole, iam.Role{
			AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("lambda.amazonaws.com"),
			ManagedPolicyArns:        managed,
		})
		if err != nil {
			return err
		}
		role = p.attr(p.names.ExecutionRole, "Arn")
	}

	fn := lambda.Function{
		Code:                         lambda.Function_Code{ZipFile: PlaceholderCode},
		Description:                  fmt.Sprintf("Lambda function %s.", p.prefix),
		FunctionName:                 p.prefix,
		Handler:                      l.Handler,
		MemorySize:                   l.Memory,
		ReservedConcurrentExecutions: reservedConcurrency,
		Role:                         role,
		Runtime:                      l.Runtime,
		Timeout:                      l.Timeout,
	}
	if len(l.Environment) > 0 {
		fn.Environment = &lambda.Function_Environment{Variables: l.Environment}
	}
	if v := p.params.VPC; v != nil {
		fn.VpcConfig = &lambda.Function_VpcConfig{
			SecurityGroupIds: v.SecurityGroupIDs,
			SubnetIds:        v.SubnetIDs,
		}
	}
	return b.Add(p.names.Function, fn)
}

func (p *Pipeline) addBucket(b *template.Builder) error {
	return b.Add(p.names.Bucket, s3.Bucket{BucketName: p.bucketName})
}

func (p *Pipeline) addBuildProject(b *template.Builder) error {
	n := p.names

	err := b.Add(n.BuildRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("codebuild.amazonaws.com"),
	})
	if err != nil {
		return err
	}

	statements := []intrinsics.PolicyStatement{
		intrinsics.Allow(intrinsics.Any("*"), "s3:*", "lambda:UpdateFunctionCode"),
		intrinsics.Allow(
			intrinsics.Any(intrinsics.Sub{String: "arn:${AWS::Partition}:logs:${AWS::Region}:${AWS::AccountId}:log-group:/aws/codebuild/" + n.BuildProject + "*"}),
			"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"),
	}
	if secret := p.params.Pipeline.SSH.Secret; secret != nil {
		statements = append(statements, intrinsics.Allow(intrinsics.Any(secret.Arn), "secretsmanager:GetSecretValue"))
		if secret.KMSKeyArn != "" {
			statements = append(statements, intrinsics.Allow(intrinsics.Any(secret.KMSKeyArn), "kms:Decrypt"))
		}
	}

	err = b.Add(n.BuildPolicy, iam.Policy{
		PolicyName:     n.BuildPolicy,
		PolicyDocument: intrinsics.NewPolicyDocument(statements...),
		Roles:          intrinsics.Any(intrinsics.Ref{LogicalName: n.BuildRole}),
	})
	if err != nil {
		return err
	}

	spec, err := p.spec.Spec().ToJSON()
	if err != nil {
		return err
	}

	return b.Add(n.BuildProject, codebuild.Project{
		Artifacts:   codebuild.Project_Artifacts{Type: codebuild.TypeCodePipeline},
		Description: fmt.Sprintf("Installs, tests and deploys Lambda function %s.", p.prefix),
		Environment: codebuild.Project_Environment{
			ComputeType: codebuild.ComputeSmall,
			Image:       codebuild.ImageStandard7,
			Type:        codebuild.TypeLinuxContainer,
		},
		Name:        n.BuildProject,
		ServiceRole: p.attr(n.BuildRole, "Arn"),
		Source: codebuild.Project_Source{
			BuildSpec: string(spec),
			Type:      codebuild.TypeCodePipeline,
		},
	}, n.BuildPolicy)
}

func (p *Pipeline) addPipeline(b *template.Builder) error {
	n := p.names
	bucketArn := p.attr(n.Bucket, s3.AttrArn)

	err := b.Add(n.PipelineRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("codepipeline.amazonaws.com"),
		Policies: []iam.Role_Policy{{
			PolicyName: n.PipelineRole + "Policy",
			PolicyDocument: intrinsics.NewPolicyDocument(
				intrinsics.Allow(
					intrinsics.Any(bucketArn, intrinsics.Join{Delimiter: "", Values: intrinsics.Any(bucketArn, "/*")}),
					"s3:GetObject", "s3:GetObjectVersion", "s3:GetBucketVersioning", "s3:PutObject"),
				intrinsics.Allow(
					intrinsics.Any(p.attr(n.Repository, codecommit.AttrArn)),
					"codecommit:GetBranch", "codecommit:GetCommit", "codecommit:UploadArchive",
					"codecommit:GetUploadArchiveStatus", "codecommit:CancelUploadArchive"),
				intrinsics.Allow(
					intrinsics.Any(p.attr(n.BuildProject, codebuild.AttrArn)),
					"codebuild:BatchGetBuilds", "codebuild:StartBuild"),
			),
		}},
	})
	if err != nil {
		return err
	}

	artifact := []codepipeline.Pipeline_Artifact{{Name: n.SourceArtifact}}

	// The first execution needs the seed files on the branch.
	return b.Add(n.Pipeline, codepipeline.Pipeline{
		ArtifactStore: codepipeline.Pipeline_ArtifactStore{
			Location: intrinsics.Ref{LogicalName: n.Bucket},
			Type:     "S3",
		},
		Name:    n.Pipeline,
		RoleArn: p.attr(n.PipelineRole, "Arn"),
		Stages: []codepipeline.Pipeline_Stage{
			{
				Name: "SourceStage",
				Actions: []codepipeline.Pipeline_Action{{
					Name: "CodeCommitSource",
					ActionTypeId: codepipeline.Pipeline_ActionTypeId{
						Category: codepipeline.CategorySource,
						Owner:    codepipeline.OwnerAWS,
						Provider: "CodeCommit",
						Version:  "1",
					},
					Configuration: map[string]any{
						"RepositoryName":       p.attr(n.Repository, codecommit.AttrName),
						"BranchName":           Branch,
						"PollForSourceChanges": false,
					},
					OutputArtifacts: artifact,
					RunOrder:        1,
				}},
			},
			{
				Name: "BuildStage",
				Actions: []codepipeline.Pipeline_Action{{
					Name: "BuildAction",
					ActionTypeId: codepipeline.Pipeline_ActionTypeId{
						Category: codepipeline.CategoryBuild,
						Owner:    codepipeline.OwnerAWS,
						Provider: "CodeBuild",
						Version:  "1",
					},
					Configuration: map[string]any{
						"ProjectName": intrinsics.Ref{LogicalName: n.BuildProject},
					},
					InputArtifacts: artifact,
					RunOrder:       1,
				}},
			},
		},
	}, n.CommitResource)
}

// addSourceTrigger starts the pipeline on every push to the branch.
func (p *Pipeline) addSourceTrigger(b *template.Builder) error {
	n := p.names
	pipelineArn := intrinsics.Sub{String: "arn:${AWS::Partition}:codepipeline:${AWS::Region}:${AWS::AccountId}:${" + n.Pipeline + "}"}

	err := b.Add(n.SourceRuleRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("events.amazonaws.com"),
		Policies: []iam.Role_Policy{{
			PolicyName: n.SourceRuleRole + "Policy",
			PolicyDocument: intrinsics.NewPolicyDocument(
				intrinsics.Allow(intrinsics.Any(pipelineArn), "codepipeline:StartPipelineExecution"),
			),
		}},
	})
	if err != nil {
		return err
	}

	return b.Add(n.SourceRule, events.Rule{
		Description: fmt.Sprintf("Starts %s on pushes to %s.", n.Pipeline, Branch),
		EventPattern: map[string]any{
			"source":      intrinsics.Any("aws.codecommit"),
			"resources":   intrinsics.Any(p.attr(n.Repository, codecommit.AttrArn)),
			"detail-type": intrinsics.Any("CodeCommit Repository State Change"),
			"detail": map[string]any{
				"event":         intrinsics.Any("referenceCreated", "referenceUpdated"),
				"referenceType": intrinsics.Any("branch"),
				"referenceName": intrinsics.Any(Branch),
			},
		},
		State: events.StateEnabled,
		Targets: []events.Rule_Target{{
			Arn:     pipelineArn,
			Id:      "Pipeline",
			RoleArn: p.attr(n.SourceRuleRole, "Arn"),
		}},
	})
}

func (p *Pipeline) addOutputs(b *template.Builder) error {
	outputs := []struct {
		name string
		out  cicd.Output
	}{
		{"FunctionName", cicd.Output{
			Description: "Name of the deployed Lambda function.",
			Value:       intrinsics.Ref{LogicalName: p.names.Function},
		}},
		{"RepositoryCloneUrlHttp", cicd.Output{
			Description: "HTTPS clone URL of the source repository.",
			Value:       p.attr(p.names.Repository, codecommit.AttrCloneUrlHttp),
		}},
		{"PipelineName", cicd.Output{
			Description: "Name of the deployment pipeline.",
			Value:       intrinsics.Ref{LogicalName: p.names.Pipeline},
		}},
		{"ArtifactsBucketName", cicd.Output{
			Description: "Bucket holding pipeline artifacts and function packages.",
			Value:       intrinsics.Ref{LogicalName: p.names.Bucket},
		}},
	}
	for _, o := range outputs {
		if err := b.AddOutput(p.prefix+o.name, o.out); err != nil {
			return err
		}
	}
	return nil
}
