package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/buildspec"
	"github.com/lex00/cicd-lambda-go/internal/template"
)

func baseParams() Parameters {
	return Parameters{
		Lambda: LambdaParameters{
			ExecutionRoleArn: "arn:aws:iam::123456789012:role/exec",
			Memory:           256,
			Timeout:          30,
			Handler:          "manage.runner",
		},
	}
}

func synth(t *testing.T, prefix string, params Parameters) (*Pipeline, *cicd.Template) {
	t.Helper()
	p, err := New(prefix, params)
	require.NoError(t, err)

	b := template.NewBuilder()
	require.NoError(t, p.Synthesize(b))

	tmpl, err := b.Build()
	require.NoError(t, err)
	return p, tmpl
}

func getAtt(resource, attr string) map[string]any {
	return map[string]any{"Fn::GetAtt": []any{resource, attr}}
}

func ref(name string) map[string]any {
	return map[string]any{"Ref": name}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		mutate  func(*Parameters)
		wantErr error
	}{
		{name: "empty prefix", prefix: "", wantErr: ErrInvalidPrefix},
		{name: "dash in prefix", prefix: "My-Fn", wantErr: ErrInvalidPrefix},
		{name: "missing handler", prefix: "MyFn", mutate: func(p *Parameters) { p.Lambda.Handler = "" }, wantErr: ErrInvalidParameter},
		{name: "memory too low", prefix: "MyFn", mutate: func(p *Parameters) { p.Lambda.Memory = 64 }, wantErr: ErrInvalidParameter},
		{name: "timeout too high", prefix: "MyFn", mutate: func(p *Parameters) { p.Lambda.Timeout = 901 }, wantErr: ErrInvalidParameter},
		{name: "non python runtime", prefix: "MyFn", mutate: func(p *Parameters) { p.Lambda.Runtime = "nodejs20.x" }, wantErr: ErrInvalidParameter},
		{name: "vpc without subnets", prefix: "MyFn", mutate: func(p *Parameters) {
			p.VPC = &VpcParameters{SecurityGroupIDs: []string{"sg-1"}}
		}, wantErr: ErrInvalidParameter},
		{name: "both credentials", prefix: "MyFn", mutate: func(p *Parameters) {
			p.Pipeline.SSH = SSHParameters{Secret: &AWSSecret{ID: "s", Arn: "arn"}, Key: "k"}
		}, wantErr: buildspec.ErrConflictingCredentials},
		{name: "secret without arn", prefix: "MyFn", mutate: func(p *Parameters) {
			p.Pipeline.SSH = SSHParameters{Secret: &AWSSecret{ID: "s"}}
		}, wantErr: ErrInvalidParameter},
		{name: "bucket name too long", prefix: "ThisPrefixIsFarTooLongToFitIntoAnArtifactsBucketName", wantErr: ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams()
			if tt.mutate != nil {
				tt.mutate(&params)
			}
			_, err := New(tt.prefix, params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	params := baseParams()
	params.Lambda.Memory = 0
	params.Lambda.Timeout = 0

	p, tmpl := synth(t, "MyFn", params)

	fn := tmpl.Resources["MyFnFunction"].Properties
	assert.EqualValues(t, DefaultMemory, fn["MemorySize"])
	assert.EqualValues(t, DefaultTimeout, fn["Timeout"])
	assert.Equal(t, buildspec.DefaultPython, fn["Runtime"])
	assert.Equal(t, "my-fn-ci-cd-lambda-artifacts-bucket", p.BucketName())
}

func TestSynthesize_ResourceSet(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	want := map[string]string{
		"MyFnCiCdLambdaCodeCommitRepo":       "AWS::CodeCommit::Repository",
		"MyFnFunction":                       "AWS::Lambda::Function",
		"MyFnCiCdLambdaDeploymentBucket":     "AWS::S3::Bucket",
		"MyFnCiCdLambdaCodeBuildRole":        "AWS::IAM::Role",
		"MyFnCiCdLambdaCodeBuildPolicy":      "AWS::IAM::Policy",
		"MyFnCiCdLambdaCodeBuildProject":     "AWS::CodeBuild::Project",
		"MyFnCiCdLambdaCustomCommitRole":     "AWS::IAM::Role",
		"MyFnCiCdLambdaCustomCommitProvider": "AWS::Lambda::Function",
		"MyFnCiCdLambdaCustomCommitResource": "Custom::InitialCommit",
		"MyFnCiCdLambdaPipelineRole":         "AWS::IAM::Role",
		"MyFnCiCdLambdaPipeline":             "AWS::CodePipeline::Pipeline",
		"MyFnCiCdLambdaSourceEventRole":      "AWS::IAM::Role",
		"MyFnCiCdLambdaSourceEventRule":      "AWS::Events::Rule",
	}

	got := make(map[string]string, len(tmpl.Resources))
	for name, def := range tmpl.Resources {
		got[name] = def.Type
	}
	assert.Equal(t, want, got)
}

func TestSynthesize_Function(t *testing.T) {
	params := baseParams()
	params.Lambda.Environment = map[string]string{"STAGE": "prod"}
	params.VPC = &VpcParameters{SubnetIDs: []string{"subnet-1"}, SecurityGroupIDs: []string{"sg-1"}}

	_, tmpl := synth(t, "MyFn", params)
	fn := tmpl.Resources["MyFnFunction"].Properties

	assert.Equal(t, "MyFn", fn["FunctionName"])
	assert.Equal(t, "Lambda function MyFn.", fn["Description"])
	assert.Equal(t, "manage.runner", fn["Handler"])
	assert.EqualValues(t, 5, fn["ReservedConcurrentExecutions"])
	assert.Equal(t, "arn:aws:iam::123456789012:role/exec", fn["Role"])
	assert.Equal(t, map[string]any{"ZipFile": PlaceholderCode}, fn["Code"])
	assert.Equal(t, map[string]any{"Variables": map[string]any{"STAGE": "prod"}}, fn["Environment"])
	assert.Equal(t, map[string]any{
		"SubnetIds":        []any{"subnet-1"},
		"SecurityGroupIds": []any{"sg-1"},
	}, fn["VpcConfig"])
}

func TestSynthesize_CreatesExecutionRole(t *testing.T) {
	params := baseParams()
	params.Lambda.ExecutionRoleArn = ""
	params.VPC = &VpcParameters{SubnetIDs: []string{"subnet-1"}, SecurityGroupIDs: []string{"sg-1"}}

	_, tmpl := synth(t, "MyFn", params)

	role, ok := tmpl.Resources["MyFnFunctionExecutionRole"]
	require.True(t, ok)
	assert.Len(t, role.Properties["ManagedPolicyArns"], 2)
	assert.Equal(t, getAtt("MyFnFunctionExecutionRole", "Arn"), tmpl.Resources["MyFnFunction"].Properties["Role"])
}

func TestSynthesize_BuildProject(t *testing.T) {
	p, tmpl := synth(t, "MyFn", baseParams())

	project := tmpl.Resources["MyFnCiCdLambdaCodeBuildProject"]
	assert.Equal(t, []string{"MyFnCiCdLambdaCodeBuildPolicy"}, project.DependsOn)

	props := project.Properties
	assert.Equal(t, "MyFnCiCdLambdaCodeBuildProject", props["Name"])
	assert.Equal(t, getAtt("MyFnCiCdLambdaCodeBuildRole", "Arn"), props["ServiceRole"])
	assert.Equal(t, map[string]any{
		"ComputeType": "BUILD_GENERAL1_SMALL",
		"Image":       "aws/codebuild/standard:7.0",
		"Type":        "LINUX_CONTAINER",
	}, props["Environment"])

	source := props["Source"].(map[string]any)
	assert.Equal(t, "CODEPIPELINE", source["Type"])

	want, err := p.Buildspec().ToJSON()
	require.NoError(t, err)
	assert.Equal(t, string(want), source["BuildSpec"])

	var spec buildspec.Spec
	require.NoError(t, json.Unmarshal([]byte(source["BuildSpec"].(string)), &spec))
	assert.Contains(t, spec.Phases.Build.Commands, `aws s3 cp $BUILD_PATH s3://my-fn-ci-cd-lambda-artifacts-bucket/"MyFn".zip`)
}

func statementActions(t *testing.T, doc any) [][]any {
	t.Helper()
	stmts := doc.(map[string]any)["Statement"].([]any)
	out := make([][]any, len(stmts))
	for i, s := range stmts {
		out[i] = s.(map[string]any)["Action"].([]any)
	}
	return out
}

func TestSynthesize_BuildPolicy(t *testing.T) {
	t.Run("no secret", func(t *testing.T) {
		_, tmpl := synth(t, "MyFn", baseParams())
		props := tmpl.Resources["MyFnCiCdLambdaCodeBuildPolicy"].Properties

		actions := statementActions(t, props["PolicyDocument"])
		require.Len(t, actions, 2)
		assert.Equal(t, []any{"s3:*", "lambda:UpdateFunctionCode"}, actions[0])
		assert.Equal(t, []any{ref("MyFnCiCdLambdaCodeBuildRole")}, props["Roles"])
	})

	t.Run("secret with kms key", func(t *testing.T) {
		params := baseParams()
		params.Pipeline.SSH = SSHParameters{Secret: &AWSSecret{
			ID:        "bitbucket-key",
			Arn:       "arn:aws:secretsmanager:eu-west-1:123456789012:secret:bitbucket-key",
			KMSKeyArn: "arn:aws:kms:eu-west-1:123456789012:key/abc",
		}}
		_, tmpl := synth(t, "MyFn", params)
		doc := tmpl.Resources["MyFnCiCdLambdaCodeBuildPolicy"].Properties["PolicyDocument"]

		actions := statementActions(t, doc)
		require.Len(t, actions, 4)
		assert.Equal(t, []any{"secretsmanager:GetSecretValue"}, actions[2])
		assert.Equal(t, []any{"kms:Decrypt"}, actions[3])

		stmts := doc.(map[string]any)["Statement"].([]any)
		assert.Equal(t, []any{params.Pipeline.SSH.Secret.Arn}, stmts[2].(map[string]any)["Resource"])
	})
}

func TestSynthesize_Pipeline(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	pipeline := tmpl.Resources["MyFnCiCdLambdaPipeline"]
	assert.Equal(t, []string{"MyFnCiCdLambdaCustomCommitResource"}, pipeline.DependsOn)

	props := pipeline.Properties
	assert.Equal(t, "MyFnCiCdLambdaPipeline", props["Name"])
	assert.Equal(t, map[string]any{"Location": ref("MyFnCiCdLambdaDeploymentBucket"), "Type": "S3"}, props["ArtifactStore"])

	stages := props["Stages"].([]any)
	require.Len(t, stages, 2)

	source := stages[0].(map[string]any)
	assert.Equal(t, "SourceStage", source["Name"])
	sourceAction := source["Actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "CodeCommitSource", sourceAction["Name"])
	assert.EqualValues(t, 1, sourceAction["RunOrder"])
	assert.Equal(t, []any{map[string]any{"Name": "MyFnCiCdLambdaSourceArtifact"}}, sourceAction["OutputArtifacts"])
	config := sourceAction["Configuration"].(map[string]any)
	assert.Equal(t, "master", config["BranchName"])
	assert.Equal(t, false, config["PollForSourceChanges"])

	build := stages[1].(map[string]any)
	assert.Equal(t, "BuildStage", build["Name"])
	buildAction := build["Actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "BuildAction", buildAction["Name"])
	assert.Equal(t, []any{map[string]any{"Name": "MyFnCiCdLambdaSourceArtifact"}}, buildAction["InputArtifacts"])
	assert.Equal(t, ref("MyFnCiCdLambdaCodeBuildProject"), buildAction["Configuration"].(map[string]any)["ProjectName"])
}

func TestSynthesize_SourceTrigger(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	rule := tmpl.Resources["MyFnCiCdLambdaSourceEventRule"].Properties
	pattern := rule["EventPattern"].(map[string]any)
	assert.Equal(t, []any{"aws.codecommit"}, pattern["source"])
	assert.Equal(t, []any{getAtt("MyFnCiCdLambdaCodeCommitRepo", "Arn")}, pattern["resources"])

	target := rule["Targets"].([]any)[0].(map[string]any)
	assert.Equal(t, getAtt("MyFnCiCdLambdaSourceEventRole", "Arn"), target["RoleArn"])
}

func TestSynthesize_Outputs(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	require.Len(t, tmpl.Outputs, 4)
	assert.Equal(t, ref("MyFnFunction"), tmpl.Outputs["MyFnFunctionName"].Value)
	assert.Equal(t, getAtt("MyFnCiCdLambdaCodeCommitRepo", "CloneUrlHttp"), tmpl.Outputs["MyFnRepositoryCloneUrlHttp"].Value)
	assert.Equal(t, ref("MyFnCiCdLambdaPipeline"), tmpl.Outputs["MyFnPipelineName"].Value)
}

func TestSynthesize_ExplicitBucketName(t *testing.T) {
	params := baseParams()
	params.Pipeline.ArtifactsBucketName = "SharedArtifacts"

	p, tmpl := synth(t, "MyFn", params)
	assert.Equal(t, "shared-artifacts", p.BucketName())
	assert.Equal(t, "shared-artifacts", tmpl.Resources["MyFnCiCdLambdaDeploymentBucket"].Properties["BucketName"])
}

func TestSynthesize_RuntimeDrivesBuildspec(t *testing.T) {
	params := baseParams()
	params.Lambda.Runtime = "python3.8"

	p, _ := synth(t, "MyFn", params)
	assert.Contains(t, p.Buildspec().Phases.Install.Commands, "virtualenv $VENV_PATH --python=python3.8")
}

func TestSynthesize_DependencyOrder(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	order, err := template.Order(tmpl)
	require.NoError(t, err)

	index := make(map[string]int, len(order))
	for i, name := range order {
		index[name] = i
	}
	assert.Less(t, index["MyFnCiCdLambdaCodeCommitRepo"], index["MyFnCiCdLambdaCustomCommitResource"])
	assert.Less(t, index["MyFnCiCdLambdaCustomCommitResource"], index["MyFnCiCdLambdaPipeline"])
	assert.Less(t, index["MyFnCiCdLambdaCodeBuildPolicy"], index["MyFnCiCdLambdaCodeBuildProject"])
	assert.Less(t, index["MyFnCiCdLambdaPipeline"], index["MyFnCiCdLambdaSourceEventRule"])
}

func TestSynthesize_Twice(t *testing.T) {
	p, err := New("MyFn", baseParams())
	require.NoError(t, err)

	b := template.NewBuilder()
	require.NoError(t, p.Synthesize(b))
	assert.ErrorIs(t, p.Synthesize(b), template.ErrDuplicateResource)
}
