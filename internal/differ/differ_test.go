package differ

import (
	"os"
	"path/filepath"
	"testing"

	cicd "github.com/lex00/cicd-lambda-go"
)

func fn(props map[string]any) cicd.ResourceDef {
	return cicd.ResourceDef{Type: "AWS::Lambda::Function", Properties: props}
}

func TestCompare(t *testing.T) {
	t1 := &cicd.Template{
		Resources: map[string]cicd.ResourceDef{
			"Bucket1": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket1"}},
			"Bucket2": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket2"}},
		},
	}

	t2 := &cicd.Template{
		Resources: map[string]cicd.ResourceDef{
			"Bucket1": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket1-modified"}},
			"Bucket3": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket3"}},
		},
	}

	result := Compare(t1, t2, Options{})

	if len(result.Diff.Removed) != 1 || result.Diff.Removed[0].Resource != "Bucket2" {
		t.Errorf("Removed = %+v, want [Bucket2]", result.Diff.Removed)
	}
	if len(result.Diff.Added) != 1 || result.Diff.Added[0].Resource != "Bucket3" {
		t.Errorf("Added = %+v, want [Bucket3]", result.Diff.Added)
	}
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}

	mod := result.Diff.Modified[0]
	if mod.Resource != "Bucket1" {
		t.Errorf("Modified[0].Resource = %s, want Bucket1", mod.Resource)
	}
	if !mod.Replacement {
		t.Error("renaming a bucket should require replacement")
	}
	if result.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", result.Summary.Total)
	}
}

func TestCompareIdentical(t *testing.T) {
	template := &cicd.Template{
		Resources: map[string]cicd.ResourceDef{
			"Bucket": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "test"}},
		},
		Outputs: map[string]cicd.Output{"Name": {Value: map[string]any{"Ref": "Bucket"}}},
	}

	result := Compare(template, template, Options{})
	if !result.Empty() {
		t.Errorf("Summary.Total = %d, want 0 for identical templates", result.Summary.Total)
	}
}

func TestCompareTypeChange(t *testing.T) {
	t1 := &cicd.Template{Resources: map[string]cicd.ResourceDef{"Resource1": {Type: "AWS::S3::Bucket"}}}
	t2 := &cicd.Template{Resources: map[string]cicd.ResourceDef{"Resource1": {Type: "AWS::S3::AccessPoint"}}}

	result := Compare(t1, t2, Options{})
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}
	entry := result.Diff.Modified[0]
	if len(entry.Changes) != 1 || entry.Changes[0].Path != "Type" {
		t.Errorf("Changes = %v, want [Type modified]", entry.Changes)
	}
	if !entry.Replacement {
		t.Error("type change should require replacement")
	}
}

func TestCompareNestedPaths(t *testing.T) {
	old := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": fn(map[string]any{
			"Environment": map[string]any{"Variables": map[string]any{"STAGE": "dev", "OLD": "x"}},
			"MemorySize":  float64(128),
			"Role":        map[string]any{"Fn::GetAtt": []any{"RoleA", "Arn"}},
		}),
	}}
	updated := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": fn(map[string]any{
			"Environment": map[string]any{"Variables": map[string]any{"STAGE": "prod", "NEW": "y"}},
			"MemorySize":  float64(128),
			"Role":        map[string]any{"Fn::GetAtt": []any{"RoleB", "Arn"}},
		}),
	}}

	result := Compare(old, updated, Options{})
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}

	want := []Change{
		{Path: "Properties.Environment.Variables.NEW", Kind: Added},
		{Path: "Properties.Environment.Variables.OLD", Kind: Removed},
		{Path: "Properties.Environment.Variables.STAGE", Kind: Modified},
		{Path: "Properties.Role", Kind: Modified},
	}
	got := result.Diff.Modified[0].Changes
	if len(got) != len(want) {
		t.Fatalf("Changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Changes[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if result.Diff.Modified[0].Replacement {
		t.Error("environment changes update in place")
	}
}

func TestCompareIgnoreOrder(t *testing.T) {
	old := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": fn(map[string]any{"Layers": []any{"a", "b"}}),
	}}
	updated := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": fn(map[string]any{"Layers": []any{"b", "a"}}),
	}}

	if r := Compare(old, updated, Options{}); r.Summary.Modified != 1 {
		t.Errorf("ordered compare: Modified = %d, want 1", r.Summary.Modified)
	}
	if r := Compare(old, updated, Options{IgnoreOrder: true}); !r.Empty() {
		t.Errorf("IgnoreOrder compare: Total = %d, want 0", r.Summary.Total)
	}
}

func TestCompareDependsOnOrder(t *testing.T) {
	old := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"P": {Type: "AWS::CodePipeline::Pipeline", DependsOn: []string{"A", "B"}},
	}}
	updated := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"P": {Type: "AWS::CodePipeline::Pipeline", DependsOn: []string{"B", "A"}},
	}}
	if r := Compare(old, updated, Options{}); !r.Empty() {
		t.Errorf("DependsOn order should not matter, got %+v", r.Diff)
	}
}

func TestCompareOutputs(t *testing.T) {
	old := &cicd.Template{Outputs: map[string]cicd.Output{
		"Kept":    {Value: "a"},
		"Changed": {Value: "a"},
		"Dropped": {Value: "a"},
	}}
	updated := &cicd.Template{Outputs: map[string]cicd.Output{
		"Kept":    {Value: "a"},
		"Changed": {Value: "b"},
		"New":     {Value: "a"},
	}}

	result := Compare(old, updated, Options{})
	want := []Change{
		{Path: "Changed", Kind: Modified},
		{Path: "Dropped", Kind: Removed},
		{Path: "New", Kind: Added},
	}
	if len(result.Diff.Outputs) != len(want) {
		t.Fatalf("Outputs = %v, want %v", result.Diff.Outputs, want)
	}
	for i := range want {
		if result.Diff.Outputs[i] != want[i] {
			t.Errorf("Outputs[%d] = %v, want %v", i, result.Diff.Outputs[i], want[i])
		}
	}
}

func TestLoadTemplate_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "a.json")
	yamlPath := filepath.Join(dir, "b.yaml")

	if err := os.WriteFile(jsonPath, []byte(`{"Resources":{"B":{"Type":"AWS::S3::Bucket","Properties":{"BucketName":"x"}}}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte("Resources:\n  B:\n    Type: AWS::S3::Bucket\n    Properties:\n      BucketName: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	result, err := CompareFiles(jsonPath, yamlPath, Options{})
	if err != nil {
		t.Fatalf("CompareFiles() error = %v", err)
	}
	if !result.Empty() {
		t.Errorf("JSON and YAML forms should be equal, got %+v", result.Diff)
	}

	if _, err := LoadTemplate(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNormalize(t *testing.T) {
	built := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": fn(map[string]any{"MemorySize": int64(256)}),
	}}
	loaded := &cicd.Template{Resources: map[string]cicd.ResourceDef{
		"Fn": fn(map[string]any{"MemorySize": float64(256)}),
	}}

	if r := Compare(built, loaded, Options{}); r.Empty() {
		t.Fatal("int64 and float64 differ before normalization")
	}
	norm, err := Normalize(built)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if r := Compare(norm, loaded, Options{}); !r.Empty() {
		t.Errorf("normalized template should equal loaded one, got %+v", r.Diff)
	}
}
