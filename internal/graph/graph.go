// Package graph renders the resource dependency graph of a template in DOT
// or Mermaid format.
package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	cicd "github.com/lex00/cicd-lambda-go"
	"github.com/lex00/cicd-lambda-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// ParseFormat accepts "dot", "mermaid" or an empty string (dot).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatDOT:
		return FormatDOT, nil
	case FormatMermaid:
		return FormatMermaid, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want dot or mermaid)", s)
}

// Generator creates dependency graphs from built templates.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool
}

// Generate writes the dependency graph of t to w. Edges point from a
// resource to what it needs. GetAtt edges are blue and explicit DependsOn
// edges are dashed.
func (g *Generator) Generate(t *cicd.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *cicd.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(t *cicd.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	nodes := make(map[string]dot.Node, len(names))
	if g.ClusterByType {
		g.addClusteredNodes(graph, t, names, nodes)
	} else {
		for _, name := range names {
			nodes[name] = addNode(graph, name, t.Resources[name].Type)
		}
	}

	for _, name := range names {
		for _, dep := range edgeStyles(t.Resources[name]) {
			to, ok := nodes[dep.target]
			if !ok {
				continue
			}
			e := graph.Edge(nodes[name], to)
			if dep.getAtt {
				e.Attr("color", "blue")
			}
			if dep.explicit {
				e.Attr("style", "dashed")
			}
		}
	}

	return graph
}

type edgeStyle struct {
	target   string
	getAtt   bool
	explicit bool
}

// edgeStyles merges the references to each target into one edge.
func edgeStyles(def cicd.ResourceDef) []edgeStyle {
	var out []edgeStyle
	for _, ref := range template.References(def) {
		if len(out) == 0 || out[len(out)-1].target != ref.Target {
			out = append(out, edgeStyle{target: ref.Target})
		}
		last := &out[len(out)-1]
		switch ref.Kind {
		case template.RefGetAtt:
			last.getAtt = true
		case template.RefDependsOn:
			last.explicit = true
		}
	}
	return out
}

type labeler interface {
	Node(id string) dot.Node
}

func addNode(g labeler, name, cfType string) dot.Node {
	n := g.Node(name)
	n.Label(name + "\\n[" + cfType + "]")
	return n
}

// addClusteredNodes groups resources by AWS service. Services with a single
// resource are drawn without a cluster.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *cicd.Template, names []string, nodes map[string]dot.Node) {
	byService := make(map[string][]string)
	var services []string
	for _, name := range names {
		service := Service(t.Resources[name].Type)
		if _, ok := byService[service]; !ok {
			services = append(services, service)
		}
		byService[service] = append(byService[service], name)
	}
	sort.Strings(services)

	for _, service := range services {
		members := byService[service]
		var target labeler = graph
		if len(members) > 1 {
			cluster := graph.Subgraph("cluster_"+service, dot.ClusterOption{})
			cluster.Attr("label", service)
			cluster.Attr("style", "rounded")
			cluster.Attr("bgcolor", "lightyellow")
			target = cluster
		}
		for _, name := range members {
			nodes[name] = addNode(target, name, t.Resources[name].Type)
		}
	}
}

// Service extracts the service from a CloudFormation type.
// e.g., "AWS::S3::Bucket" -> "S3", "Custom::InitialCommit" -> "Custom"
func Service(cfType string) string {
	parts := strings.Split(cfType, "::")
	switch {
	case len(parts) >= 3:
		return parts[1]
	case len(parts) == 2:
		return parts[0]
	}
	return "Other"
}
