package document

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

// Parse decodes a configuration document from either JSON or YAML bytes.
// YAML is converted to a normalized JSON-shaped tree (gopkg.in/yaml.v3
// decodes mapping nodes into map[string]interface{}, so round-tripping
// through encoding/json hands both formats to the same struct decoder)
// before the $schema and resource-identity invariants are checked.
func Parse(data []byte) (*Configuration, error) {
	normalized, err := normalize(data)
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, dscerr.Parse("configuration document is not well-formed", err)
	}

	order, err := variableKeyOrder(normalized)
	if err != nil {
		return nil, err
	}
	cfg.VariableOrder = order

	if !IsRecognizedSchema(cfg.Schema) {
		return nil, dscerr.Validation("unrecognized configuration document schema", nil).
			WithDetail("schema", cfg.Schema)
	}

	if err := checkResourceIdentity(cfg.Resources); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// normalize sniffs the document for JSON vs YAML and returns a JSON byte
// stream in either case. A document is treated as JSON only when its
// first non-whitespace byte is '{', matching the teacher's manifest
// loader's preference for explicit format detection over file extension.
func normalize(data []byte) ([]byte, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return data, nil
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, dscerr.Parse("configuration document is not valid YAML", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, dscerr.Parse("configuration document could not be normalized to JSON", err)
	}
	return out, nil
}

// variableKeyOrder walks the top-level "variables" object's raw JSON
// tokens to recover the source order of its keys, since Go's
// map[string]interface{} does not preserve one.
func variableKeyOrder(normalized []byte) ([]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(normalized, &top); err != nil {
		return nil, dscerr.Parse("configuration document is not well-formed", err)
	}
	raw, ok := top["variables"]
	if !ok {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, dscerr.Parse("variables block is not well-formed", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, dscerr.Parse("variables block must be a JSON object", nil)
	}

	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, dscerr.Parse("variables block is not well-formed", err)
		}
		key, _ := keyTok.(string)
		order = append(order, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, dscerr.Parse("variables block is not well-formed", err)
		}
	}
	return order, nil
}

// checkResourceIdentity enforces invariant (iii): the pair (name, type)
// is unique across the document's resource list.
func checkResourceIdentity(resources []ResourceInstance) error {
	seen := make(map[string]bool, len(resources))
	for _, r := range resources {
		key := r.Type + "\x00" + r.Name
		if seen[key] {
			return dscerr.Validation("resource is specified more than once in the configuration", nil).
				WithCode(dscerr.CodeDuplicateResource).
				WithResource(r.Name).
				WithDetail("type", r.Type)
		}
		seen[key] = true
	}
	return nil
}
