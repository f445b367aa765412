package manifest

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blang/semver/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

// Loader loads resource manifests from YAML files, adapted from the
// teacher's ManifestLoader: read bytes, unmarshal, validate, convert to
// the engine's internal shape.
type Loader struct {
	validate *validator.Validate
}

// NewLoader constructs a Loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New()}
}

// rawManifest is the on-disk shape, validated with struct tags before
// being converted to the richer ResourceManifest.
type rawManifest struct {
	Type        string            `yaml:"type" validate:"required"`
	Version     string            `yaml:"version" validate:"required"`
	Description string            `yaml:"description"`
	Tags        []string          `yaml:"tags"`
	ExitCodes   map[string]string `yaml:"exitCodes"`

	Get    *rawOperation `yaml:"get"`
	Set    *rawOperation `yaml:"set"`
	Test   *rawOperation `yaml:"test"`
	Export *rawOperation `yaml:"export"`
	Schema *rawOperation `yaml:"schema"`
}

type rawOperation struct {
	Executable string   `yaml:"executable" validate:"required"`
	Args       []rawArg `yaml:"args"`
	Input      string   `yaml:"input"`
	Return     string   `yaml:"return"`
	PreTest    bool     `yaml:"preTest"`
}

// rawArg decodes either a plain YAML scalar (a literal argv token) or a
// one-key mapping naming a placeholder kind (file/jsonInputArg/name/vault).
type rawArg struct {
	tok ArgToken
}

func (r *rawArg) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.tok = ArgToken{Kind: ArgLiteral, Literal: value.Value}
		return nil
	}
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("arg entry must be a scalar or a single-key mapping")
	}
	key := value.Content[0].Value
	flag := value.Content[1].Value
	switch key {
	case "file":
		r.tok = ArgToken{Kind: ArgFile, Flag: flag}
	case "jsonInputArg":
		r.tok = ArgToken{Kind: ArgJSONInput, Flag: flag}
	case "name":
		r.tok = ArgToken{Kind: ArgName, Flag: flag}
	case "vault":
		r.tok = ArgToken{Kind: ArgVault, Flag: flag}
	default:
		return fmt.Errorf("unknown arg placeholder kind %q", key)
	}
	return nil
}

// LoadFromFile reads and parses a manifest from path.
func (l *Loader) LoadFromFile(path string) (*ResourceManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dscerr.Resource("failed to read manifest file", err).
			WithCode(dscerr.CodeManifestNotFound).WithDetail("path", path)
	}
	return l.LoadFromBytes(data)
}

// LoadFromBytes parses a manifest from raw YAML/JSON bytes (YAML is a
// JSON superset, so both decode with the same path).
func (l *Loader) LoadFromBytes(data []byte) (*ResourceManifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dscerr.Parse("manifest is not well-formed", err)
	}
	if err := l.validate.Struct(&raw); err != nil {
		return nil, dscerr.Validation("manifest failed structural validation", err)
	}
	return convert(&raw)
}

func convert(raw *rawManifest) (*ResourceManifest, error) {
	if !ValidTypeName(raw.Type) {
		return nil, dscerr.Validation("manifest type name is not well-formed", nil).
			WithCode(dscerr.CodeBadTypeName).WithDetail("type", raw.Type)
	}
	version, err := semver.Parse(raw.Version)
	if err != nil {
		return nil, dscerr.Validation("manifest version is not valid semver", err).WithDetail("version", raw.Version)
	}

	exitCodes := make(map[int]string, len(raw.ExitCodes))
	for k, v := range raw.ExitCodes {
		code, err := strconv.Atoi(k)
		if err != nil {
			return nil, dscerr.Validation("manifest exit code key must be an integer", err).WithDetail("code", k)
		}
		exitCodes[code] = v
	}

	m := &ResourceManifest{
		Type:        raw.Type,
		Version:     version,
		Description: raw.Description,
		Tags:        raw.Tags,
		ExitCodes:   exitCodes,
	}

	var convErr error
	m.Get, convErr = convertOperation(raw.Get)
	if convErr != nil {
		return nil, convErr
	}
	m.Set, convErr = convertOperation(raw.Set)
	if convErr != nil {
		return nil, convErr
	}
	m.Test, convErr = convertOperation(raw.Test)
	if convErr != nil {
		return nil, convErr
	}
	m.Export, convErr = convertOperation(raw.Export)
	if convErr != nil {
		return nil, convErr
	}
	m.Schema, convErr = convertOperation(raw.Schema)
	if convErr != nil {
		return nil, convErr
	}

	if m.Get == nil && m.Set == nil && m.Test == nil && m.Export == nil {
		return nil, dscerr.Validation("manifest declares no operations", nil).WithDetail("type", raw.Type)
	}

	return m, nil
}

func convertOperation(raw *rawOperation) (*OperationDescriptor, error) {
	if raw == nil {
		return nil, nil
	}
	args := make([]ArgToken, len(raw.Args))
	for i, a := range raw.Args {
		args[i] = a.tok
	}

	input := InputKind(raw.Input)
	switch input {
	case InputNone, InputStdin, InputEnv:
	default:
		return nil, dscerr.Validation("unsupported input mode", nil).WithDetail("input", raw.Input)
	}

	ret := ReturnKind(raw.Return)
	switch ret {
	case ReturnNone, ReturnState, ReturnStateAndDiff:
	default:
		return nil, dscerr.Validation("unsupported return mode", nil).WithDetail("return", raw.Return)
	}

	return &OperationDescriptor{
		Executable: raw.Executable,
		Args:       args,
		Input:      input,
		Return:     ret,
		PreTest:    raw.PreTest,
	}, nil
}
