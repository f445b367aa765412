// Package configure implements the configurator (L10): the state machine
// that turns one configuration document and a supplied-parameters object
// into an ordered sequence of resource invocations and an aggregated
// result. It wires together pkg/document, pkg/plan, pkg/manifest and
// pkg/invoke exactly as spec.md §4.7 describes — ParseDoc → BindParameters
// → EvalVariables → Plan → {EvalProperties → Discover → Invoke →
// AggregateResult}* → EmitOperationResult — collapsed from the teacher's
// Evaluator/Planner/Executor interface split into one sequential flow,
// since this engine has no background scheduler and no streamed events.
package configure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openfroyo/dsce/pkg/document"
	"github.com/openfroyo/dsce/pkg/expr"
	"github.com/openfroyo/dsce/pkg/invoke"
	"github.com/openfroyo/dsce/pkg/manifest"
	"github.com/openfroyo/dsce/pkg/plan"
	"github.com/openfroyo/dsce/pkg/policy"
)

// Discoverer resolves a fully-qualified resource type name to its loaded
// manifest. pkg/discovery implements this over a directory scan with a
// cache; tests can supply a map-backed stub.
type Discoverer interface {
	Resolve(ctx context.Context, resourceType string) (*manifest.ResourceManifest, error)
}

// Configurator runs one invocation of the state machine against a parsed
// configuration document.
type Configurator struct {
	Discoverer Discoverer
	// ConfigRoot anchors relative paths for file-reading builtins and is
	// threaded onto the evaluation context.
	ConfigRoot string
	// VaultName, when set, is passed to every resource invocation's Vault
	// argument placeholder (spec §4.5).
	VaultName string
	// EnvLookup overrides envvar() resolution; nil uses the default
	// (os.LookupEnv) a fresh expr.Context already carries.
	EnvLookup func(name string) (string, bool)
	// Gate, when set, is evaluated against every resource's "set"
	// invocation before the invoker runs. A nil Gate allows everything.
	Gate *policy.Gate
	// Now is swappable for deterministic message timestamps in tests.
	Now func() time.Time
}

// Run executes op ("get", "set", "test", or "export") against cfg, with
// supplied as the caller-provided parameter values.
func (c *Configurator) Run(ctx context.Context, op string, cfg *document.Configuration, supplied map[string]interface{}) (*OperationResult, error) {
	bound, err := document.BindParameters(cfg.Parameters, supplied)
	if err != nil {
		return nil, err
	}

	evalCtx := expr.NewContext()
	evalCtx.ConfigRoot = c.ConfigRoot
	if c.EnvLookup != nil {
		evalCtx.EnvLookup = c.EnvLookup
	}
	for name, v := range bound {
		evalCtx.Parameters[name] = v
	}

	if err := document.EvalVariables(evalCtx, cfg); err != nil {
		return nil, err
	}
	if err := document.RegisterUserFunctions(evalCtx, cfg); err != nil {
		return nil, err
	}

	order, err := plan.BuildOrder(cfg.Resources)
	if err != nil {
		return nil, err
	}

	result := &OperationResult{Operation: op}
	skipped := make(map[string]bool)
	failed := make(map[string]bool)

	for _, resource := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if blocker, isSkipped := c.blockedBy(resource, failed, skipped); isSkipped {
			skipped[resource.Name] = true
			result.Messages = append(result.Messages, c.message(resource, LevelWarn,
				"skipped: dependency failed ("+blocker+")"))
			continue
		}

		properties, err := document.EvalProperties(evalCtx, resource.Properties)
		if err != nil {
			failed[resource.Name] = true
			result.HadErrors = true
			result.Messages = append(result.Messages, c.message(resource, LevelError, err.Error()))
			continue
		}

		m, err := c.Discoverer.Resolve(ctx, resource.Type)
		if err != nil {
			failed[resource.Name] = true
			result.HadErrors = true
			result.Messages = append(result.Messages, c.message(resource, LevelError, err.Error()))
			continue
		}

		if op == "set" && c.Gate != nil {
			blocked, err := c.checkPolicy(ctx, resource, properties, result)
			if err != nil {
				failed[resource.Name] = true
				result.HadErrors = true
				result.Messages = append(result.Messages, c.message(resource, LevelError, err.Error()))
				continue
			}
			if blocked {
				failed[resource.Name] = true
				result.HadErrors = true
				continue
			}
		}

		inv := &invoke.Invoker{ResourceName: resource.Name, VaultName: c.VaultName}
		invokeResult, err := inv.Invoke(ctx, m, op, properties)
		if err != nil {
			failed[resource.Name] = true
			result.HadErrors = true
			result.Messages = append(result.Messages, c.message(resource, LevelError, err.Error()))
			continue
		}

		result.Results = append(result.Results, ResourceResult{
			ResourceType:      resource.Type,
			ResourceName:      resource.Name,
			BeforeState:       invokeResult.BeforeState,
			AfterState:        invokeResult.AfterState,
			ChangedProperties: invokeResult.ChangedProperties,
			ExportedStates:    invokeResult.ExportedStates,
		})
	}

	return result, nil
}

// blockedBy reports whether resource has an unevaluated dependency among
// failed or skipped, and if so the name of the blocking dependency — the
// skip propagates transitively since a dependency of a skipped resource
// is itself marked skipped before its own dependents are examined (order
// is already a valid topological sort, so every dependency is visited
// first).
func (c *Configurator) blockedBy(resource document.ResourceInstance, failed, skipped map[string]bool) (string, bool) {
	names, err := plan.DependencyNames(resource)
	if err != nil {
		return "", false
	}
	for _, name := range names {
		if failed[name] || skipped[name] {
			return name, true
		}
	}
	return "", false
}

// checkPolicy evaluates the Gate against resource's bound properties,
// recording every violation as a message. It reports blocked=true when an
// error-severity policy denied the invocation; the resource is still
// marked failed by the caller in that case.
func (c *Configurator) checkPolicy(ctx context.Context, resource document.ResourceInstance, properties expr.Value, result *OperationResult) (bool, error) {
	violations, allowed, err := c.Gate.Evaluate(ctx, policy.Input{
		Operation:    "set",
		ResourceType: resource.Type,
		ResourceName: resource.Name,
		Properties:   propertiesToPlain(properties),
	})
	if err != nil {
		return false, err
	}
	for _, v := range violations {
		level := LevelWarn
		if v.Severity == policy.SeverityError {
			level = LevelError
		}
		result.Messages = append(result.Messages, c.message(resource, level, v.Policy+": "+v.Message))
	}
	return !allowed, nil
}

// propertiesToPlain round-trips an evaluated property set through JSON to
// the plain Go values OPA input expects, the same conversion pkg/invoke
// uses to build a resource's stdin payload.
func propertiesToPlain(v expr.Value) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil
	}
	return generic
}

func (c *Configurator) message(resource document.ResourceInstance, level MessageLevel, text string) ResourceMessage {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return ResourceMessage{
		ResourceType: resource.Type,
		ResourceName: resource.Name,
		Level:        level,
		Message:      text,
		Timestamp:    now(),
	}
}
