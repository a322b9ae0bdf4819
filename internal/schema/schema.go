// Package schema checks generated resources against the property rules
// CloudFormation enforces when a stack is created.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lex00/cloudformation-schema-go/enums"

	cicd "github.com/lex00/cicd-lambda-go"
)

// Issue is one schema problem found on a resource.
type Issue struct {
	Resource string `json:"resource"`
	Property string `json:"property,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	if i.Property == "" {
		return fmt.Sprintf("%s: %s", i.Resource, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s", i.Resource, i.Property, i.Message)
}

// Result contains schema validation results.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// Valid reports whether no errors were found.
func (r *Result) Valid() bool { return len(r.Errors) == 0 }

// ResourceSchema lists the properties of a resource type that are checked.
type ResourceSchema struct {
	Required   []string
	Properties map[string]PropertyType
}

// PropertyType is the CloudFormation primitive or collection type of a property.
type PropertyType string

const (
	String  PropertyType = "String"
	Integer PropertyType = "Integer"
	Number  PropertyType = "Number"
	Boolean PropertyType = "Boolean"
	List    PropertyType = "List"
	Map     PropertyType = "Map"
	JSON    PropertyType = "Json"
)

// Schemas covers every resource type the pipeline emits.
var Schemas = map[string]ResourceSchema{
	"AWS::CodeCommit::Repository": {
		Required:   []string{"RepositoryName"},
		Properties: map[string]PropertyType{"RepositoryName": String, "RepositoryDescription": String},
	},
	"AWS::S3::Bucket": {
		Properties: map[string]PropertyType{"BucketName": String},
	},
	"AWS::Lambda::Function": {
		Required: []string{"Code", "Role"},
		Properties: map[string]PropertyType{
			"Code": Map, "Description": String, "Environment": Map, "FunctionName": String,
			"Handler": String, "MemorySize": Integer, "ReservedConcurrentExecutions": Integer,
			"Role": String, "Runtime": String, "Timeout": Integer, "VpcConfig": Map,
		},
	},
	"AWS::IAM::Role": {
		Required: []string{"AssumeRolePolicyDocument"},
		Properties: map[string]PropertyType{
			"AssumeRolePolicyDocument": JSON, "Description": String, "ManagedPolicyArns": List,
			"Policies": List, "RoleName": String,
		},
	},
	"AWS::IAM::Policy": {
		Required:   []string{"PolicyDocument", "PolicyName"},
		Properties: map[string]PropertyType{"PolicyDocument": JSON, "PolicyName": String, "Roles": List},
	},
	"AWS::CodeBuild::Project": {
		Required: []string{"Artifacts", "Environment", "ServiceRole", "Source"},
		Properties: map[string]PropertyType{
			"Artifacts": Map, "Description": String, "Environment": Map, "Name": String,
			"ServiceRole": String, "Source": Map,
		},
	},
	"AWS::CodePipeline::Pipeline": {
		Required: []string{"RoleArn", "Stages"},
		Properties: map[string]PropertyType{
			"ArtifactStore": Map, "Name": String, "RoleArn": String, "Stages": List,
		},
	},
	"AWS::CloudWatch::Alarm": {
		Required: []string{"ComparisonOperator", "EvaluationPeriods"},
		Properties: map[string]PropertyType{
			"ActionsEnabled": Boolean, "AlarmActions": List, "AlarmDescription": String,
			"AlarmName": String, "ComparisonOperator": String, "Dimensions": List,
			"EvaluationPeriods": Integer, "MetricName": String, "Namespace": String,
			"Period": Integer, "Statistic": String, "Threshold": Number,
		},
	},
	"AWS::Events::Rule": {
		Properties: map[string]PropertyType{
			"Description": String, "EventPattern": JSON, "State": String, "Targets": List,
		},
	},
}

// enumServices maps CloudFormation service names to enum service names.
var enumServices = map[string]string{
	"lambda": "lambda",
	"s3":     "s3",
	"events": "events",
}

// retiredRuntimes can no longer be used to create Lambda functions.
var retiredRuntimes = map[string]bool{
	"python2.7": true,
	"python3.6": true,
	"python3.7": true,
	"python3.8": true,
}

// ValidateTemplate checks every resource of t. Resources are visited in
// name order so the issue lists are stable.
func ValidateTemplate(t *cicd.Template) *Result {
	result := &Result{}

	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		errs, warns := validateResource(name, t.Resources[name])
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}
	return result
}

func validateResource(name string, def cicd.ResourceDef) (errs, warns []Issue) {
	if !isValidResourceType(def.Type) {
		errs = append(errs, Issue{Resource: name, Property: "Type", Message: fmt.Sprintf("invalid resource type format: %s", def.Type)})
		return errs, warns
	}
	if strings.HasPrefix(def.Type, "Custom::") {
		if _, ok := def.Properties["ServiceToken"]; !ok {
			errs = append(errs, Issue{Resource: name, Property: "ServiceToken", Message: "missing required property: ServiceToken"})
		}
		return errs, warns
	}

	sch, ok := Schemas[def.Type]
	if !ok {
		warns = append(warns, Issue{Resource: name, Property: "Type", Message: fmt.Sprintf("unknown resource type: %s", def.Type)})
		return errs, warns
	}

	for _, required := range sch.Required {
		if _, exists := def.Properties[required]; !exists {
			errs = append(errs, Issue{Resource: name, Property: required, Message: fmt.Sprintf("missing required property: %s", required)})
		}
	}

	props := make([]string, 0, len(def.Properties))
	for prop := range def.Properties {
		props = append(props, prop)
	}
	sort.Strings(props)

	service := serviceOf(def.Type)
	for _, prop := range props {
		value := def.Properties[prop]
		typ, known := sch.Properties[prop]
		if !known {
			warns = append(warns, Issue{Resource: name, Property: prop, Message: "unknown property"})
			continue
		}
		if !isValidType(value, typ) {
			errs = append(errs, Issue{Resource: name, Property: prop, Message: fmt.Sprintf("expected type %s", typ)})
			continue
		}
		if s, ok := value.(string); ok {
			if def.Type == "AWS::Lambda::Function" && prop == "Runtime" && retiredRuntimes[s] {
				errs = append(errs, Issue{Resource: name, Property: prop, Message: fmt.Sprintf("runtime %s is retired; Lambda no longer creates functions with it", s)})
				continue
			}
			if msg := checkEnum(service, prop, s); msg != "" {
				warns = append(warns, Issue{Resource: name, Property: prop, Message: msg})
			}
		}
	}
	return errs, warns
}

// checkEnum returns a message when value is outside the property's known
// enum. Enum data can lag new AWS values, so callers treat it as a warning.
func checkEnum(service, property, value string) string {
	enumService := enumServices[service]
	if enumService == "" {
		return ""
	}
	enumName := enums.GetEnumForProperty(enumService, property)
	if enumName == "" {
		return ""
	}
	if enums.IsValidValue(enumService, enumName, value) {
		return ""
	}
	return fmt.Sprintf("%q is not a known %s value", value, enumName)
}

// serviceOf returns the lowercase service of a type such as AWS::Lambda::Function.
func serviceOf(resourceType string) string {
	parts := strings.Split(resourceType, "::")
	if len(parts) != 3 {
		return ""
	}
	return strings.ToLower(parts[1])
}

func isValidResourceType(resourceType string) bool {
	if name, ok := strings.CutPrefix(resourceType, "Custom::"); ok {
		return name != ""
	}
	parts := strings.Split(resourceType, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return false
	}
	return parts[0] == "AWS"
}

// isValidType accepts intrinsic functions wherever a scalar is expected since
// they resolve at deploy time.
func isValidType(value any, expected PropertyType) bool {
	if isIntrinsic(value) {
		return true
	}

	switch expected {
	case String:
		_, ok := value.(string)
		return ok
	case Integer:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case Number:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case Boolean:
		_, ok := value.(bool)
		return ok
	case List:
		_, ok := value.([]any)
		return ok
	case Map:
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

func isIntrinsic(value any) bool {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for key := range m {
		return key == "Ref" || strings.HasPrefix(key, "Fn::")
	}
	return false
}
