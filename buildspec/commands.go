package buildspec

import (
	"fmt"
	"strings"
	"text/template"

	"al.essio.dev/pkg/shellescape"
	"github.com/Masterminds/sprig/v3"
)

const (
	keyFile     = "id_rsa"
	venvPath    = "/tmp/lambda-tmpenv"
	installPath = "/tmp/ivs-lambda-install-dir"
	buildPath   = "/tmp/ivs-lambda-pack.zip"
)

// commandTemplates holds one template per parameterized command. Values that
// come from users go through sh (shell quoting) or args (argument joining).
var commandTemplates = map[string]string{
	"fetch-secret":    `aws secretsmanager get-secret-value --secret-id {{ sh .SecretID }} | jq --raw-output '.SecretString' > {{ .KeyFile }}`,
	"write-key":       `echo {{ sh .Key }} > {{ .KeyFile }}`,
	"venv":            `virtualenv $VENV_PATH --python={{ .Python }}`,
	"run-script":      `./{{ .Script }}{{ args .Args }}`,
	"site-packages":   `cp -R $VENV_PATH/lib/{{ .Python }}/site-packages/. {{ .Dest }}`,
	"artifact-key":    `KEY={{ .Prefix }}`,
	"upload":          `aws s3 cp $BUILD_PATH s3://{{ .Bucket }}/{{ .Prefix | quote }}.zip`,
	"update-function": `aws lambda update-function-code --function-name={{ .Prefix | quote }} --s3-bucket={{ .Bucket }} --s3-key={{ .Prefix | quote }}.zip --publish`,
}

var commands = func() *template.Template {
	funcs := sprig.TxtFuncMap()
	funcs["sh"] = shellescape.Quote
	funcs["args"] = joinArgs

	root := template.New("buildspec").Funcs(funcs).Option("missingkey=error")
	for name, text := range commandTemplates {
		template.Must(root.New(name).Parse(text))
	}
	return root
}()

// render executes a single named command template.
func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := commands.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("rendering %s command: %w", name, err)
	}
	return sb.String(), nil
}

// joinArgs shell-quotes args and joins them with single spaces. The result
// carries a leading space so it can be appended to a script path; it is empty
// when there are no args.
func joinArgs(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return " " + shellescape.QuoteCommand(args)
}

// guarded chains steps so that a failure anywhere runs fallback instead of
// failing the phase.
func guarded(steps []string, fallback string) string {
	return "{ " + strings.Join(steps, "; ") + "; } || { " + fallback + "; }"
}

// withinDir runs cmds from dir and always returns to the starting directory.
func withinDir(dir string, cmds ...string) []string {
	out := make([]string, 0, len(cmds)+3)
	out = append(out, "current_dir=$( pwd )", "cd "+dir)
	out = append(out, cmds...)
	return append(out, "cd $current_dir")
}
