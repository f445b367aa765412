// Package policy implements an OPA/Rego guardrail gate evaluated before a
// resource's "set" operation is invoked, adapted from the teacher's
// pkg/policy/engine.go — trimmed from whole-config/plan evaluation down
// to a single resource instance, since this engine has no persisted Plan
// object to review (spec.md Non-goals: no long-lived daemon state).
package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	"github.com/openfroyo/dsce/pkg/dscerr"
)

type compiledPolicy struct {
	policy  *Policy
	pkgName string
}

// Gate holds the set of loaded policies and evaluates them against one
// resource invocation at a time.
type Gate struct {
	mu       sync.RWMutex
	policies []*compiledPolicy
}

// NewGate returns an empty gate — a configurator with no loaded policies
// allows every invocation, matching the teacher's "no policies loaded"
// default.
func NewGate() *Gate {
	return &Gate{}
}

// Reset discards every loaded policy, letting a Loader reload a
// directory's contents into the same Gate a configurator already holds
// a pointer to.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policies = nil
}

// Load compiles and registers a policy's Rego source. name is used both
// as the Rego module's compilation unit name and, by convention, should
// match the package the source declares.
func (g *Gate) Load(name, source string, severity Severity) error {
	if _, err := rego.New(rego.Module(name, source), rego.Query("data")).PrepareForEval(context.Background()); err != nil {
		return dscerr.Validation("policy failed to compile", err).WithDetail("policy", name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.policies = append(g.policies, &compiledPolicy{
		policy:  &Policy{Name: name, Rego: source, Severity: severity, Enabled: true},
		pkgName: extractPackageName(source),
	})
	return nil
}

// Evaluate runs every enabled policy's "deny" rule against input. It
// returns every violation raised and whether the invocation is allowed
// to proceed — allowed is false if any error-severity policy denied.
func (g *Gate) Evaluate(ctx context.Context, input Input) ([]Violation, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	allowed := true
	var violations []Violation

	for _, cp := range g.policies {
		if !cp.policy.Enabled {
			continue
		}
		query := fmt.Sprintf("data.%s.deny", cp.pkgName)
		r := rego.New(
			rego.Module(cp.policy.Name, cp.policy.Rego),
			rego.Query(query),
			rego.Input(map[string]interface{}{
				"operation":    input.Operation,
				"resourceType": input.ResourceType,
				"resourceName": input.ResourceName,
				"properties":   input.Properties,
			}),
		)
		results, err := r.Eval(ctx)
		if err != nil {
			return nil, false, dscerr.Internal("policy evaluation failed", err).WithDetail("policy", cp.policy.Name)
		}

		for _, result := range results {
			for _, expr := range result.Expressions {
				denySet, ok := expr.Value.([]interface{})
				if !ok {
					continue
				}
				for _, d := range denySet {
					v := Violation{Policy: cp.policy.Name, Severity: cp.policy.Severity, ResourceName: input.ResourceName}
					switch m := d.(type) {
					case string:
						v.Message = m
					default:
						v.Message = fmt.Sprintf("%v", m)
					}
					violations = append(violations, v)
					if cp.policy.Severity == SeverityError {
						allowed = false
					}
				}
			}
		}
	}

	return violations, allowed, nil
}

func extractPackageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				return fields[1]
			}
		}
	}
	return "dsce.policies"
}
