// Package template assembles resources into a CloudFormation template.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/serialize"
)

// FormatVersion is the only AWSTemplateFormatVersion CloudFormation accepts.
const FormatVersion = "2010-09-09"

var (
	ErrDuplicateResource  = errors.New("duplicate logical id")
	ErrInvalidLogicalID   = errors.New("invalid logical id")
	ErrUnknownDependency  = errors.New("unknown dependency")
	ErrUnknownReference   = errors.New("reference to undefined resource")
	ErrCircularDependency = errors.New("circular dependency detected")
)

var logicalIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,255}$`)

// subRefPattern matches ${Name} and ${Name.Attr} placeholders in Fn::Sub.
var subRefPattern = regexp.MustCompile(`\$\{([A-Za-z0-9]+)(?:\.[A-Za-z0-9.]+)?\}`)

type entry struct {
	resource  cicd.Resource
	dependsOn []string
}

// Builder collects resources and outputs and produces a Template. The built
// template does not depend on the order resources were added in.
type Builder struct {
	description string
	resources   map[string]entry
	outputs     map[string]cicd.Output
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		resources: make(map[string]entry),
		outputs:   make(map[string]cicd.Output),
	}
}

// SetDescription sets the template Description.
func (b *Builder) SetDescription(desc string) {
	b.description = desc
}

// Add registers a resource under logicalID. dependsOn lists explicit
// DependsOn targets; references through Ref, Fn::GetAtt and Fn::Sub are
// discovered when the template is built.
func (b *Builder) Add(logicalID string, r cicd.Resource, dependsOn ...string) error {
	if !logicalIDPattern.MatchString(logicalID) {
		return fmt.Errorf("%w: %q", ErrInvalidLogicalID, logicalID)
	}
	if _, exists := b.resources[logicalID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, logicalID)
	}
	b.resources[logicalID] = entry{resource: r, dependsOn: append([]string(nil), dependsOn...)}
	return nil
}

// AddOutput registers a template output.
func (b *Builder) AddOutput(name string, out cicd.Output) error {
	if !logicalIDPattern.MatchString(name) {
		return fmt.Errorf("%w: output %q", ErrInvalidLogicalID, name)
	}
	if _, exists := b.outputs[name]; exists {
		return fmt.Errorf("%w: output %s", ErrDuplicateResource, name)
	}
	b.outputs[name] = out
	return nil
}

// Len returns the number of registered resources.
func (b *Builder) Len() int {
	return len(b.resources)
}

// Build serializes every resource and checks the dependency graph. Every
// Ref, Fn::GetAtt and Fn::Sub target, in resources and outputs, must name a
// registered resource.
func (b *Builder) Build() (*cicd.Template, error) {
	tmpl := &cicd.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]cicd.ResourceDef, len(b.resources)),
	}

	deps := make(map[string][]string, len(b.resources))
	for name, e := range b.resources {
		props, err := serialize.Properties(e.resource)
		if err != nil {
			return nil, fmt.Errorf("serializing %s: %w", name, err)
		}

		for _, dep := range e.dependsOn {
			if _, ok := b.resources[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, dep)
			}
		}

		def := cicd.ResourceDef{Type: e.resource.ResourceType()}
		if len(props) > 0 {
			def.Properties = props
		}
		if len(e.dependsOn) > 0 {
			def.DependsOn = append([]string(nil), e.dependsOn...)
			sort.Strings(def.DependsOn)
		}
		tmpl.Resources[name] = def
		deps[name] = Dependencies(def)
	}

	if err := checkReferences(tmpl.Resources); err != nil {
		return nil, err
	}

	if _, err := sortDependencies(deps); err != nil {
		return nil, err
	}

	if len(b.outputs) > 0 {
		tmpl.Outputs = make(map[string]cicd.Output, len(b.outputs))
		for name, out := range b.outputs {
			val, err := serialize.Value(out.Value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			out.Value = val
			tmpl.Outputs[name] = out

			seen := make(map[Reference]bool)
			collectRefs(val, seen)
			for _, ref := range sortedRefs(seen) {
				if _, ok := tmpl.Resources[ref.Target]; !ok {
					return nil, fmt.Errorf("%w: output %s: %s %s", ErrUnknownReference, name, ref.Kind, ref.Target)
				}
			}
		}
	}

	return tmpl, nil
}

// Order returns the logical ids of a template in dependency order, with ties
// broken alphabetically.
func Order(t *cicd.Template) ([]string, error) {
	deps := make(map[string][]string, len(t.Resources))
	for name, def := range t.Resources {
		deps[name] = Dependencies(def)
	}
	return sortDependencies(deps)
}

// RefKind says how one resource refers to another.
type RefKind string

const (
	RefDependsOn RefKind = "DependsOn"
	RefRef       RefKind = "Ref"
	RefGetAtt    RefKind = "Fn::GetAtt"
	RefSub       RefKind = "Fn::Sub"
)

// Reference is an edge from a resource to a logical id it needs.
type Reference struct {
	Target string
	Kind   RefKind
}

// References returns every reference a resource makes, explicit or through
// intrinsics, sorted by target then kind. Pseudo parameters such as
// AWS::Region are excluded.
func References(def cicd.ResourceDef) []Reference {
	seen := make(map[Reference]bool)
	for _, d := range def.DependsOn {
		seen[Reference{Target: d, Kind: RefDependsOn}] = true
	}
	collectRefs(def.Properties, seen)
	return sortedRefs(seen)
}

func sortedRefs(seen map[Reference]bool) []Reference {
	out := make([]Reference, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// checkReferences reports the first intrinsic reference, in logical id
// order, whose target is not a resource of the template. DependsOn targets
// are checked when they are added.
func checkReferences(resources map[string]cicd.ResourceDef) error {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, ref := range References(resources[name]) {
			if ref.Kind == RefDependsOn {
				continue
			}
			if _, ok := resources[ref.Target]; !ok {
				return fmt.Errorf("%w: %s: %s %s", ErrUnknownReference, name, ref.Kind, ref.Target)
			}
		}
	}
	return nil
}

// Dependencies returns the sorted, de-duplicated logical ids a resource
// depends on.
func Dependencies(def cicd.ResourceDef) []string {
	var out []string
	for _, r := range References(def) {
		if len(out) == 0 || out[len(out)-1] != r.Target {
			out = append(out, r.Target)
		}
	}
	return out
}

func collectRefs(value any, seen map[Reference]bool) {
	switch v := value.(type) {
	case map[string]any:
		if ref, ok := v["Ref"].(string); ok && len(v) == 1 {
			if !strings.HasPrefix(ref, "AWS::") {
				seen[Reference{Target: ref, Kind: RefRef}] = true
			}
			return
		}
		if att, ok := v["Fn::GetAtt"].([]any); ok && len(v) == 1 && len(att) > 0 {
			if name, ok := att[0].(string); ok {
				seen[Reference{Target: name, Kind: RefGetAtt}] = true
			}
			return
		}
		if sub, ok := v["Fn::Sub"]; ok && len(v) == 1 {
			collectSubRefs(sub, seen)
			return
		}
		for _, val := range v {
			collectRefs(val, seen)
		}
	case []any:
		for _, elem := range v {
			collectRefs(elem, seen)
		}
	}
}

func collectSubRefs(sub any, seen map[Reference]bool) {
	var (
		text string
		vars map[string]any
	)
	switch s := sub.(type) {
	case string:
		text = s
	case []any:
		if len(s) > 0 {
			text, _ = s[0].(string)
		}
		if len(s) > 1 {
			vars, _ = s[1].(map[string]any)
			collectRefs(s[1], seen)
		}
	}
	for _, m := range subRefPattern.FindAllStringSubmatch(text, -1) {
		if _, local := vars[m[1]]; !local {
			seen[Reference{Target: m[1], Kind: RefSub}] = true
		}
	}
}

// sortDependencies returns nodes in dependency order using Kahn's algorithm.
// References to names outside the graph are ignored.
func sortDependencies(deps map[string][]string) ([]string, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range deps {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name, ds := range deps {
		for _, dep := range ds {
			if _, exists := deps[dep]; exists {
				graph[dep] = append(graph[dep], name)
				inDegree[name]++
			}
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(deps))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(deps) {
		return nil, detectCycle(deps)
	}
	return result, nil
}

// detectCycle finds one cycle and reports it as a path that starts and ends
// at the same node.
func detectCycle(deps map[string][]string) error {
	visited := make(map[string]bool)
	var stack []string

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		stack = append(stack, node)

		for _, dep := range deps[node] {
			if _, exists := deps[dep]; !exists {
				continue
			}
			for i, n := range stack {
				if n == dep {
					cycle = append(append([]string(nil), stack[i:]...), dep)
					return true
				}
			}
			if !visited[dep] && findCycle(dep) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		return false
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) > 0 {
		return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(cycle, " → "))
	}
	return ErrCircularDependency
}

// ToJSON serializes the template to indented JSON.
func ToJSON(t *cicd.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *cicd.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
