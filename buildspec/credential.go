package buildspec

import (
	"errors"
	"fmt"
)

// ErrConflictingCredentials is returned when both a secret reference and an
// inline key are supplied as the SSH credential source.
var ErrConflictingCredentials = errors.New("both secret id and private key cannot be set")

// CredentialSource selects how the SSH key used to reach private dependency
// repositories gets into the build container. Exactly one case is active:
//
//	NoCredential{}                 no key setup
//	SecretReference{ID: "my-key"}  fetched from Secrets Manager at build time
//	InlineKey{Value: "..."}        written from the template as-is
type CredentialSource interface {
	// keyStep returns the command that leaves the private key in the key file,
	// or "" when no key is configured.
	keyStep() (string, error)
	validate() error
}

// NoCredential emits no key setup commands.
type NoCredential struct{}

func (NoCredential) keyStep() (string, error) { return "", nil }
func (NoCredential) validate() error          { return nil }

// SecretReference reads the key from a plaintext Secrets Manager secret.
// The secret is only resolved by the build container, never at generation time.
type SecretReference struct {
	ID string
}

func (s SecretReference) keyStep() (string, error) {
	return render("fetch-secret", map[string]any{"SecretID": s.ID, "KeyFile": keyFile})
}

func (s SecretReference) validate() error {
	if s.ID == "" {
		return errors.New("secret reference requires an id")
	}
	return nil
}

// InlineKey writes the supplied private key straight into the key file.
type InlineKey struct {
	Value string
}

func (k InlineKey) keyStep() (string, error) {
	return render("write-key", map[string]any{"Key": k.Value, "KeyFile": keyFile})
}

func (k InlineKey) validate() error {
	if k.Value == "" {
		return errors.New("inline key must not be empty")
	}
	return nil
}

// CredentialFromOptional maps the two optional parameters used by pipeline
// configuration onto a CredentialSource. An empty string means unset.
func CredentialFromOptional(secretID, privateKey string) (CredentialSource, error) {
	switch {
	case secretID != "" && privateKey != "":
		return nil, fmt.Errorf("credential source: %w", ErrConflictingCredentials)
	case secretID != "":
		return SecretReference{ID: secretID}, nil
	case privateKey != "":
		return InlineKey{Value: privateKey}, nil
	default:
		return NoCredential{}, nil
	}
}

// credentialCommands returns the commands prepended to the install phase.
func credentialCommands(src CredentialSource, strict bool) ([]string, error) {
	step, err := src.keyStep()
	if err != nil {
		return nil, err
	}
	if step == "" {
		return nil, nil
	}

	fallback := `echo "Invalid key"`
	if strict {
		fallback += "; exit 1"
	}

	return []string{
		"apt install jq",
		guarded([]string{
			step,
			"eval `ssh-agent`",
			"mv " + keyFile + " ~/.ssh",
			"chmod 0600 ~/.ssh/" + keyFile,
			"ssh-add ~/.ssh/" + keyFile,
		}, fallback),
	}, nil
}
