package pipeline

import (
	"embed"
	"fmt"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/template"
	"github.com/lex00/cicd-lambda-go/intrinsics"
	"github.com/lex00/cicd-lambda-go/resources/codecommit"
	"github.com/lex00/cicd-lambda-go/resources/custom"
	"github.com/lex00/cicd-lambda-go/resources/iam"
	"github.com/lex00/cicd-lambda-go/resources/lambda"
)

//go:embed seed/install.sh seed/manage.py seed/test.sh seed/provider.py
var seed embed.FS

// SeedFiles are committed to the new repository, in commit order.
var SeedFiles = []string{"install.sh", "manage.py", "test.sh"}

const (
	// Branch is the branch the pipeline builds from.
	Branch = "master"

	commitMessage   = "Initial files."
	providerRuntime = "python3.12"
	providerTimeout = 60
)

// SeedFile returns the content of one of SeedFiles.
func SeedFile(name string) (string, error) {
	data, err := seed.ReadFile("seed/" + name)
	if err != nil {
		return "", fmt.Errorf("seed file %s: %w", name, err)
	}
	return string(data), nil
}

// addInitialCommit pushes the seed files to the repository once, when the
// stack is created. Updates and deletes leave the repository alone.
func (p *Pipeline) addInitialCommit(b *template.Builder) error {
	n := p.names

	err := b.Add(n.CommitRole, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("lambda.amazonaws.com"),
		Policies: []iam.Role_Policy{{
			PolicyName: n.CommitPolicy,
			PolicyDocument: intrinsics.NewPolicyDocument(
				intrinsics.Allow(intrinsics.Any(cicd.AttrRef{Resource: n.Repository, Attribute: codecommit.AttrArn}),
					"codecommit:CreateCommit"),
				intrinsics.Allow(intrinsics.Any("*"),
					"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"),
			),
		}},
	})
	if err != nil {
		return err
	}

	provider, err := SeedFile("provider.py")
	if err != nil {
		return err
	}
	err = b.Add(n.CommitProvider, lambda.Function{
		Code:        lambda.Function_Code{ZipFile: provider},
		Description: fmt.Sprintf("Creates the initial commit in %s.", n.Repository),
		Handler:     "index.handler",
		Role:        cicd.AttrRef{Resource: n.CommitRole, Attribute: "Arn"},
		Runtime:     providerRuntime,
		Timeout:     providerTimeout,
	})
	if err != nil {
		return err
	}

	files := make([]custom.PutFile, 0, len(SeedFiles))
	for _, name := range SeedFiles {
		content, err := SeedFile(name)
		if err != nil {
			return err
		}
		files = append(files, custom.PutFile{
			FilePath:    name,
			FileMode:    custom.FileModeNormal,
			FileContent: content,
		})
	}

	return b.Add(n.CommitResource, custom.InitialCommit{
		ServiceToken:       cicd.AttrRef{Resource: n.CommitProvider, Attribute: "Arn"},
		RepositoryName:     cicd.AttrRef{Resource: n.Repository, Attribute: codecommit.AttrName},
		BranchName:         Branch,
		CommitMessage:      commitMessage,
		PutFiles:           files,
		PhysicalResourceId: p.prefix + "CiCdLambdaCreateCommit",
	})
}
