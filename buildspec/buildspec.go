// Package buildspec generates the CodeBuild build specification that installs
// a Lambda function's dependencies, runs its tests, packages it and publishes
// the new code.
//
// The generator is a pure function of its options. It never runs commands or
// touches AWS; the returned Spec is data for CodeBuild to execute:
//
//	gen, err := buildspec.New(buildspec.Options{
//	    Target:      buildspec.ArtifactTarget{Bucket: "my-bucket", Prefix: "MyFn"},
//	    Credential:  buildspec.SecretReference{ID: "bitbucket-key"},
//	    InstallArgs: []string{"--no-dev"},
//	})
//	spec := gen.Spec()
package buildspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Version is the buildspec schema version understood by CodeBuild.
const Version = 0.2

// DefaultPython is the interpreter used for the virtual environment when
// Options.Python is empty. It is a current Lambda runtime and ships with the
// standard:7.0 build image.
const DefaultPython = "python3.12"

var (
	// ErrInvalidPrefix is returned for prefixes that cannot be used as a
	// Lambda function name and S3 key.
	ErrInvalidPrefix = errors.New("invalid prefix")

	// ErrMissingBucket is returned when no artifact bucket is given.
	ErrMissingBucket = errors.New("artifact bucket is required")
)

var (
	prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	pythonPattern = regexp.MustCompile(`^python[0-9]+(\.[0-9]+)?$`)
)

// Spec is a CodeBuild buildspec. Field order fixes the phase order.
type Spec struct {
	Version float64 `json:"version" yaml:"version"`
	Phases  Phases  `json:"phases" yaml:"phases"`
}

// Phases are run by CodeBuild strictly in order: install, pre_build, build.
type Phases struct {
	Install  Phase `json:"install" yaml:"install"`
	PreBuild Phase `json:"pre_build" yaml:"pre_build"`
	Build    Phase `json:"build" yaml:"build"`
}

// Phase is an ordered list of shell commands.
type Phase struct {
	Commands []string `json:"commands" yaml:"commands"`
}

// ArtifactTarget names where the packaged function goes.
type ArtifactTarget struct {
	// Bucket is the S3 bucket the archive is uploaded to.
	Bucket string
	// Prefix is both the Lambda function name and the archive key stem.
	Prefix string
}

// Key returns the S3 object key of the packaged archive.
func (t ArtifactTarget) Key() string {
	return t.Prefix + ".zip"
}

// Options configure a Generator.
type Options struct {
	Target ArtifactTarget

	// Credential defaults to NoCredential when nil.
	Credential CredentialSource

	// InstallArgs and TestArgs are appended to install.sh and test.sh.
	InstallArgs []string
	TestArgs    []string

	// Python is the virtualenv interpreter, e.g. "python3.8".
	Python string

	// StrictCredentials makes a failed SSH key setup fail the install phase
	// instead of printing "Invalid key" and carrying on.
	StrictCredentials bool
}

// Generator holds a validated, rendered buildspec.
type Generator struct {
	opts Options
	spec Spec
}

// New validates opts and renders the buildspec.
func New(opts Options) (*Generator, error) {
	if opts.Credential == nil {
		opts.Credential = NoCredential{}
	}
	if opts.Python == "" {
		opts.Python = DefaultPython
	}
	if err := validate(opts); err != nil {
		return nil, fmt.Errorf("buildspec configuration: %w", err)
	}

	spec, err := generate(opts)
	if err != nil {
		return nil, err
	}
	return &Generator{opts: opts, spec: spec}, nil
}

func validate(opts Options) error {
	if !prefixPattern.MatchString(opts.Target.Prefix) {
		return fmt.Errorf("%w %q: want 1-64 letters, digits, '-' or '_'", ErrInvalidPrefix, opts.Target.Prefix)
	}
	if opts.Target.Bucket == "" {
		return ErrMissingBucket
	}
	if !bucketPattern.MatchString(opts.Target.Bucket) {
		return fmt.Errorf("invalid bucket name %q", opts.Target.Bucket)
	}
	if !pythonPattern.MatchString(opts.Python) {
		return fmt.Errorf("invalid python interpreter %q", opts.Python)
	}
	return opts.Credential.validate()
}

// Spec returns a copy of the generated buildspec.
func (g *Generator) Spec() Spec {
	return g.spec.clone()
}

// Target returns the artifact target the buildspec publishes to.
func (g *Generator) Target() ArtifactTarget {
	return g.opts.Target
}

// Credential returns the configured credential source.
func (g *Generator) Credential() CredentialSource {
	return g.opts.Credential
}

func generate(opts Options) (Spec, error) {
	install, err := installCommands(opts)
	if err != nil {
		return Spec{}, err
	}
	preBuild, err := preBuildCommands(opts)
	if err != nil {
		return Spec{}, err
	}
	build, err := buildCommands(opts)
	if err != nil {
		return Spec{}, err
	}

	return Spec{
		Version: Version,
		Phases: Phases{
			Install:  Phase{Commands: install},
			PreBuild: Phase{Commands: preBuild},
			Build:    Phase{Commands: build},
		},
	}, nil
}

func installCommands(opts Options) ([]string, error) {
	cmds, err := credentialCommands(opts.Credential, opts.StrictCredentials)
	if err != nil {
		return nil, err
	}

	venv, err := render("venv", map[string]any{"Python": opts.Python})
	if err != nil {
		return nil, err
	}
	run, err := render("run-script", map[string]any{"Script": "install.sh", "Args": opts.InstallArgs})
	if err != nil {
		return nil, err
	}

	return append(cmds,
		fmt.Sprintf("VENV_PATH=%q", venvPath),
		venv,
		". $VENV_PATH/bin/activate",
		"chmod +x install.sh",
		run,
	), nil
}

func preBuildCommands(opts Options) ([]string, error) {
	run, err := render("run-script", map[string]any{"Script": "test.sh", "Args": opts.TestArgs})
	if err != nil {
		return nil, err
	}
	return []string{"chmod +x test.sh", run}, nil
}

func buildCommands(opts Options) ([]string, error) {
	target := map[string]any{
		"Prefix": opts.Target.Prefix,
		"Bucket": opts.Target.Bucket,
	}

	var cmds []string
	for _, step := range []struct {
		name string
		data any
	}{
		{"site-packages", map[string]any{"Python": opts.Python, "Dest": "$INSTALL_PATH"}},
		{"site-packages", map[string]any{"Python": opts.Python, "Dest": "."}},
		{"artifact-key", target},
		{"upload", target},
		{"update-function", target},
	} {
		cmd, err := render(step.name, step.data)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	sitePackages, publish := cmds[:2], cmds[2:]

	out := []string{
		fmt.Sprintf("INSTALL_PATH=%q", installPath),
		fmt.Sprintf("BUILD_PATH=%q", buildPath),
		"cp -R . $INSTALL_PATH",
	}
	out = append(out, sitePackages...)
	out = append(out, withinDir("$INSTALL_PATH", "zip -9 -r $BUILD_PATH *")...)
	return append(out, publish...), nil
}

func (s Spec) clone() Spec {
	s.Phases.Install.Commands = slices.Clone(s.Phases.Install.Commands)
	s.Phases.PreBuild.Commands = slices.Clone(s.Phases.PreBuild.Commands)
	s.Phases.Build.Commands = slices.Clone(s.Phases.Build.Commands)
	return s
}

// Commands returns every command in execution order.
func (s Spec) Commands() []string {
	var all []string
	all = append(all, s.Phases.Install.Commands...)
	all = append(all, s.Phases.PreBuild.Commands...)
	return append(all, s.Phases.Build.Commands...)
}

// ToJSON serializes the buildspec as indented JSON. Shell operators such as
// '>' and '&' are kept literal.
func (s Spec) ToJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ToYAML serializes the buildspec as YAML, the format CodeBuild reads from
// buildspec.yml.
func (s Spec) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// String returns the JSON form used for the CodeBuild project's inline
// BuildSpec property.
func (s Spec) String() string {
	data, err := s.ToJSON()
	if err != nil {
		return ""
	}
	return string(data)
}
