// Package manifest models a resource manifest: the YAML/JSON descriptor
// that tells the engine how to invoke an external executable for the
// get/set/test/export/schema operations of one resource type.
package manifest

import (
	"regexp"

	"github.com/blang/semver/v4"
)

// typeNamePattern is the fully-qualified resource type name grammar from
// spec §3.3: <owner>(.<namespace>)*/<shortName>.
var typeNamePattern = regexp.MustCompile(`^[A-Za-z0-9]+(\.[A-Za-z0-9]+)*/[A-Za-z0-9]+$`)

// ValidTypeName reports whether name is a well-formed fully-qualified
// resource type name.
func ValidTypeName(name string) bool {
	return typeNamePattern.MatchString(name)
}

// InputKind selects how the engine delivers the evaluated property bag to
// the child process.
type InputKind string

const (
	InputNone  InputKind = ""
	InputStdin InputKind = "stdin"
	InputEnv   InputKind = "env"
)

// ReturnKind selects how the engine decodes the child process's stdout.
type ReturnKind string

const (
	ReturnNone         ReturnKind = ""
	ReturnState        ReturnKind = "state"
	ReturnStateAndDiff ReturnKind = "stateAndDiff"
)

// ArgTokenKind tags the variant of one entry of an OperationDescriptor's
// Args list.
type ArgTokenKind int

const (
	ArgLiteral ArgTokenKind = iota
	ArgFile
	ArgJSONInput
	ArgName
	ArgVault
)

// ArgToken is one entry of an operation's argv template. Literal carries
// a fixed string; the placeholder kinds (File, JSONInput, Name, Vault)
// are expanded by the invoker at call time — see spec §4.5.
type ArgToken struct {
	Kind    ArgTokenKind
	Literal string
	Flag    string
}

// OperationDescriptor describes how to invoke one operation (get/set/test/
// export/schema) of a resource type.
type OperationDescriptor struct {
	Executable string
	Args       []ArgToken
	Input      InputKind
	Return     ReturnKind
	// PreTest, meaningful only on the Set descriptor, indicates the
	// resource performs its own idempotency check internally so the
	// engine does not need to synthesize a pre-set test call.
	PreTest bool
}

// ResourceManifest is the parsed descriptor for one resource type.
type ResourceManifest struct {
	Type        string
	Version     semver.Version
	Description string
	Tags        []string
	ExitCodes   map[int]string

	Get    *OperationDescriptor
	Set    *OperationDescriptor
	Test   *OperationDescriptor
	Export *OperationDescriptor
	Schema *OperationDescriptor
}

// ExitMessage looks up the human-readable message for a nonzero exit
// code, defaulting to "Error" per spec §4.5.
func (m *ResourceManifest) ExitMessage(code int) string {
	if msg, ok := m.ExitCodes[code]; ok {
		return msg
	}
	return "Error"
}

// Supports reports whether the manifest declares a descriptor for op.
func (m *ResourceManifest) Supports(op string) (*OperationDescriptor, bool) {
	switch op {
	case "get":
		return m.Get, m.Get != nil
	case "set":
		return m.Set, m.Set != nil
	case "test":
		return m.Test, m.Test != nil
	case "export":
		return m.Export, m.Export != nil
	case "schema":
		return m.Schema, m.Schema != nil
	default:
		return nil, false
	}
}
