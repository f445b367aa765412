// Package document implements the configuration document model: parsing
// (JSON or YAML) into a normalized in-memory tree, parameter binding
// against declared constraints, and document-order evaluation of
// variables and resource properties through the expression language.
package document

import (
	"github.com/openfroyo/dsce/pkg/expr"
)

// recognizedSchemas is the closed set of configuration document schema
// URIs the engine accepts. Anything else is a validation error per
// spec §6.1.
var recognizedSchemas = map[string]bool{
	"https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2024/04/config/document.json":         true,
	"https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2024/04/bundled/config/document.json": true,
	"https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2023/10/config/document.json":         true,
	"https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2023/10/bundled/config/document.json": true,
	"https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2023/08/config/document.json":         true,
	"https://raw.githubusercontent.com/PowerShell/DSC/main/schemas/2023/08/bundled/config/document.json": true,
}

// IsRecognizedSchema reports whether uri is one of the schema URIs the
// engine will accept for a configuration document's $schema field.
func IsRecognizedSchema(uri string) bool {
	return recognizedSchemas[uri]
}

// DataType is the declared type of a parameter, matching the type names
// the document format uses verbatim.
type DataType string

const (
	TypeString       DataType = "string"
	TypeSecureString DataType = "secureString"
	TypeInt          DataType = "int"
	TypeBool         DataType = "bool"
	TypeObject       DataType = "object"
	TypeSecureObject DataType = "secureObject"
	TypeArray        DataType = "array"
)

// ParameterSpec is one entry of a configuration document's top-level
// "parameters" map.
type ParameterSpec struct {
	Type          DataType               `json:"type"`
	DefaultValue  interface{}            `json:"defaultValue,omitempty"`
	AllowedValues []interface{}          `json:"allowedValues,omitempty"`
	MinValue      *int64                 `json:"minValue,omitempty"`
	MaxValue      *int64                 `json:"maxValue,omitempty"`
	MinLength     *int64                 `json:"minLength,omitempty"`
	MaxLength     *int64                 `json:"maxLength,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ResourceInstance is one entry of a configuration document's "resources"
// array: a named instance of a resource type with a property bag whose
// string fields may themselves contain expressions.
type ResourceInstance struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	DependsOn  []string               `json:"dependsOn,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// UserFunctionDef is one entry of a configuration document's
// "userFunctions" map: a name, its declared parameter names, and an
// output expression evaluated in a scope where only those parameters are
// bound.
type UserFunctionDef struct {
	Parameters []string `json:"parameters"`
	Output     string   `json:"output"`
	OutputType DataType `json:"outputType,omitempty"`
}

// Configuration is the parsed, but not yet bound or evaluated, top-level
// document: schema, parameters, variables, user functions, and the
// resource list.
type Configuration struct {
	Schema         string                   `json:"$schema"`
	ContentVersion string                   `json:"contentVersion,omitempty"`
	Parameters     map[string]ParameterSpec `json:"parameters,omitempty"`
	Variables      map[string]interface{}   `json:"variables,omitempty"`
	UserFunctions  map[string]UserFunctionDef `json:"userFunctions,omitempty"`
	// VariableOrder records the order variable names appeared in the
	// document's "variables" object so EvalVariables can honor the
	// document-order evaluation guarantee — map iteration order is not
	// specified by Go, so this is populated separately during Parse by
	// walking the raw JSON tokens.
	VariableOrder []string `json:"-"`
	Resources      []ResourceInstance       `json:"resources"`
	Metadata       map[string]interface{}   `json:"metadata,omitempty"`
}

// BoundParameters maps a parameter name to its bound expr.Value, after
// type validation, constraint checking, and default substitution.
type BoundParameters map[string]expr.Value
