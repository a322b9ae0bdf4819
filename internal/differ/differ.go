// Package differ compares two CloudFormation templates resource by resource,
// typically a deployed stack's template against a freshly generated one.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"sigs.k8s.io/yaml"

	cicd "github.com/lex00/cicd-lambda-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder compares lists as multisets.
	IgnoreOrder bool
}

// ChangeKind classifies a property change.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Removed  ChangeKind = "removed"
	Modified ChangeKind = "modified"
)

// Change is one differing property path, such as Environment.Variables.STAGE.
type Change struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

func (c Change) String() string { return c.Path + " " + string(c.Kind) }

// Entry describes one resource present in the diff.
type Entry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []Change `json:"changes,omitempty"`
	// Replacement is set when a changed property makes CloudFormation
	// replace the resource rather than update it in place.
	Replacement bool `json:"replacement,omitempty"`
}

// Diff groups resource entries by outcome.
type Diff struct {
	Added    []Entry  `json:"added,omitempty"`
	Removed  []Entry  `json:"removed,omitempty"`
	Modified []Entry  `json:"modified,omitempty"`
	Outputs  []Change `json:"outputs,omitempty"`
}

// Summary counts the diff entries.
type Summary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Outputs  int `json:"outputs"`
	Total    int `json:"total"`
}

// Result contains the difference between two templates.
type Result struct {
	Diff    Diff    `json:"diff"`
	Summary Summary `json:"summary"`
}

// Empty reports whether the templates are equivalent.
func (r *Result) Empty() bool { return r.Summary.Total == 0 }

// replacementProperties lists the properties whose change replaces the
// resource. Names are the usual case: renaming the prefix renames all of them.
var replacementProperties = map[string][]string{
	"AWS::CodeCommit::Repository": {"RepositoryName"},
	"AWS::S3::Bucket":             {"BucketName"},
	"AWS::Lambda::Function":       {"FunctionName"},
	"AWS::CodeBuild::Project":     {"Name"},
	"AWS::IAM::Role":              {"RoleName"},
	"AWS::CloudWatch::Alarm":      {"AlarmName"},
}

// Compare returns the changes that turn old into updated.
func Compare(old, updated *cicd.Template, opts Options) *Result {
	result := &Result{}

	for name, def := range updated.Resources {
		if _, exists := old.Resources[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, Entry{Resource: name, Type: def.Type})
		}
	}

	for name, oldDef := range old.Resources {
		newDef, exists := updated.Resources[name]
		if !exists {
			result.Diff.Removed = append(result.Diff.Removed, Entry{Resource: name, Type: oldDef.Type})
			continue
		}
		if entry, changed := compareResources(name, oldDef, newDef, opts); changed {
			result.Diff.Modified = append(result.Diff.Modified, entry)
		}
	}

	result.Diff.Outputs = compareOutputs(old.Outputs, updated.Outputs, opts)

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = Summary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
		Outputs:  len(result.Diff.Outputs),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified + result.Summary.Outputs

	return result
}

// CompareFiles compares two template files.
func CompareFiles(oldPath, updatedPath string, opts Options) (*Result, error) {
	old, err := LoadTemplate(oldPath)
	if err != nil {
		return nil, err
	}
	updated, err := LoadTemplate(updatedPath)
	if err != nil {
		return nil, err
	}
	return Compare(old, updated, opts), nil
}

// LoadTemplate reads a JSON or YAML template. Values are decoded the way
// encoding/json decodes them, so numbers are float64 on both sides of a
// comparison.
func LoadTemplate(path string) (*cicd.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing template: %w", path, err)
	}

	var t cicd.Template
	if err := json.Unmarshal(jsonData, &t); err != nil {
		return nil, fmt.Errorf("%s: decoding template: %w", path, err)
	}
	return &t, nil
}

// Normalize round-trips t through JSON so that a template built in memory
// compares equal to the same template loaded from disk.
func Normalize(t *cicd.Template) (*cicd.Template, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var out cicd.Template
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func compareResources(name string, old, updated cicd.ResourceDef, opts Options) (Entry, bool) {
	entry := Entry{Resource: name, Type: updated.Type}

	if old.Type != updated.Type {
		entry.Changes = append(entry.Changes, Change{Path: "Type", Kind: Modified})
		entry.Replacement = true
	}

	entry.Changes = append(entry.Changes, compareValues("Properties", old.Properties, updated.Properties, opts)...)

	if !reflect.DeepEqual(sortedCopy(old.DependsOn), sortedCopy(updated.DependsOn)) {
		entry.Changes = append(entry.Changes, Change{Path: "DependsOn", Kind: Modified})
	}

	for _, prop := range replacementProperties[updated.Type] {
		for _, c := range entry.Changes {
			if c.Path == "Properties."+prop {
				entry.Replacement = true
			}
		}
	}

	sort.Slice(entry.Changes, func(i, j int) bool { return entry.Changes[i].Path < entry.Changes[j].Path })
	return entry, len(entry.Changes) > 0
}

func compareOutputs(old, updated map[string]cicd.Output, opts Options) []Change {
	var changes []Change
	for name, out := range updated {
		prev, ok := old[name]
		switch {
		case !ok:
			changes = append(changes, Change{Path: name, Kind: Added})
		case !deepEqual(toGeneric(prev), toGeneric(out), opts):
			changes = append(changes, Change{Path: name, Kind: Modified})
		}
	}
	for name := range old {
		if _, ok := updated[name]; !ok {
			changes = append(changes, Change{Path: name, Kind: Removed})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// compareValues descends into nested maps and reports leaves. Lists are
// compared whole.
func compareValues(path string, old, updated any, opts Options) []Change {
	oldMap, oldIsMap := old.(map[string]any)
	newMap, newIsMap := updated.(map[string]any)
	if !oldIsMap || !newIsMap || isIntrinsic(oldMap) || isIntrinsic(newMap) {
		if deepEqual(old, updated, opts) {
			return nil
		}
		return []Change{{Path: path, Kind: Modified}}
	}

	var changes []Change
	for key, val := range newMap {
		sub := path + "." + key
		if prev, ok := oldMap[key]; ok {
			changes = append(changes, compareValues(sub, prev, val, opts)...)
		} else {
			changes = append(changes, Change{Path: sub, Kind: Added})
		}
	}
	for key := range oldMap {
		if _, ok := newMap[key]; !ok {
			changes = append(changes, Change{Path: path + "." + key, Kind: Removed})
		}
	}
	return changes
}

func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || len(k) > 4 && k[:4] == "Fn::"
	}
	return false
}

func deepEqual(a, b any, opts Options) bool {
	if opts.IgnoreOrder {
		a = normalizeValue(a)
		b = normalizeValue(b)
	}
	return reflect.DeepEqual(a, b)
}

// normalizeValue sorts every list by the JSON encoding of its elements.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []any:
		result := make([]any, len(val))
		keys := make([]string, len(val))
		for i, elem := range val {
			result[i] = normalizeValue(elem)
			b, _ := json.Marshal(result[i])
			keys[i] = string(b)
		}
		sort.Sort(byKey{keys: keys, values: result})
		return result
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = normalizeValue(v)
		}
		return result
	default:
		return v
	}
}

type byKey struct {
	keys   []string
	values []any
}

func (s byKey) Len() int           { return len(s.keys) }
func (s byKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s byKey) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.values[i], s.values[j] = s.values[j], s.values[i]
}

func toGeneric(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func sortedCopy(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
