package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFiles(t *testing.T) {
	for _, name := range SeedFiles {
		t.Run(name, func(t *testing.T) {
			content, err := SeedFile(name)
			require.NoError(t, err)
			assert.NotEmpty(t, content)
		})
	}

	_, err := SeedFile("missing.sh")
	assert.Error(t, err)
}

func TestInitialCommit(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	commit := tmpl.Resources["MyFnCiCdLambdaCustomCommitResource"].Properties
	assert.Equal(t, getAtt("MyFnCiCdLambdaCustomCommitProvider", "Arn"), commit["ServiceToken"])
	assert.Equal(t, getAtt("MyFnCiCdLambdaCodeCommitRepo", "Name"), commit["RepositoryName"])
	assert.Equal(t, "master", commit["BranchName"])
	assert.Equal(t, "Initial files.", commit["CommitMessage"])
	assert.Equal(t, "MyFnCiCdLambdaCreateCommit", commit["PhysicalResourceId"])

	files := commit["PutFiles"].([]any)
	require.Len(t, files, 3)
	var paths []string
	for _, f := range files {
		file := f.(map[string]any)
		assert.Equal(t, "NORMAL", file["fileMode"])
		paths = append(paths, file["filePath"].(string))
	}
	assert.Equal(t, []string{"install.sh", "manage.py", "test.sh"}, paths)
}

func TestInitialCommit_Role(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	role := tmpl.Resources["MyFnCiCdLambdaCustomCommitRole"].Properties
	policies := role["Policies"].([]any)
	require.Len(t, policies, 1)

	policy := policies[0].(map[string]any)
	assert.Equal(t, "MyFnCiCdLambdaCustomCommitPolicy", policy["PolicyName"])

	stmts := policy["PolicyDocument"].(map[string]any)["Statement"].([]any)
	require.Len(t, stmts, 2)
	first := stmts[0].(map[string]any)
	assert.Equal(t, []any{"codecommit:CreateCommit"}, first["Action"])
	assert.Equal(t, []any{getAtt("MyFnCiCdLambdaCodeCommitRepo", "Arn")}, first["Resource"])

	trust := role["AssumeRolePolicyDocument"].(map[string]any)["Statement"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"Service": "lambda.amazonaws.com"}, trust["Principal"])
}

func TestInitialCommit_Provider(t *testing.T) {
	_, tmpl := synth(t, "MyFn", baseParams())

	provider := tmpl.Resources["MyFnCiCdLambdaCustomCommitProvider"].Properties
	code := provider["Code"].(map[string]any)["ZipFile"].(string)
	assert.True(t, strings.Contains(code, "create_commit"))
	assert.Less(t, len(code), 4096)
	assert.Equal(t, "index.handler", provider["Handler"])
}
