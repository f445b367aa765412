// Package invoke implements the resource invoker (L8): it spawns the
// external executable a resource manifest names, feeds it the evaluated
// property bag, and decodes its result per the manifest's declared
// input/return modes. The algorithmic core — set synthesis and the
// shallow-keyed diff — is ported from the reference DSC engine's
// command_resource invoke_get/invoke_set/invoke_test/get_diff.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
	"github.com/openfroyo/dsce/pkg/manifest"
)

// Result is the outcome of one Invoke call.
type Result struct {
	// BeforeState is the state observed prior to a set (nil for get/test).
	BeforeState expr.Value
	// AfterState (get: actual state; set: post-set state; test: actual state).
	AfterState expr.Value
	// Expected is only populated for test: the input desired state.
	Expected expr.Value
	// ChangedProperties is the diff (nil for get).
	ChangedProperties []string
	// ExportedStates holds one entry per line of export's stdout stream.
	ExportedStates []expr.Value
}

// Invoker spawns child processes to carry out resource operations.
type Invoker struct {
	// ResourceName and VaultName feed the Name/Vault placeholder tokens in
	// an operation's arg list.
	ResourceName string
	VaultName    string
}

// Invoke dispatches to the operation named by op ("get", "set", "test",
// "export", "schema"), synthesizing get/test calls where the manifest
// doesn't declare enough information to answer directly.
func (inv *Invoker) Invoke(ctx context.Context, m *manifest.ResourceManifest, op string, properties expr.Value) (*Result, error) {
	desc, ok := m.Supports(op)
	if !ok {
		return nil, dscerr.NotSupported("resource does not implement operation", nil).
			WithResource(inv.ResourceName).WithDetail("operation", op)
	}

	switch op {
	case "get":
		return inv.invokeGet(ctx, m, properties)
	case "test":
		return inv.invokeTest(ctx, m, properties)
	case "set":
		return inv.invokeSet(ctx, m, properties)
	case "export":
		return inv.invokeExport(ctx, desc, properties)
	case "schema":
		return inv.invokeSchema(ctx, desc)
	default:
		return nil, dscerr.Internal("unreachable operation dispatch", nil).WithDetail("operation", op)
	}
}

func (inv *Invoker) invokeGet(ctx context.Context, m *manifest.ResourceManifest, properties expr.Value) (*Result, error) {
	stdout, err := inv.run(ctx, m.Get, properties)
	if err != nil {
		return nil, annotateExit(err, m, inv.ResourceName)
	}
	actual, err := decodeJSON(stdout)
	if err != nil {
		return nil, dscerr.Resource("resource get output could not be decoded", err).
			WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName)
	}
	return &Result{AfterState: actual}, nil
}

func (inv *Invoker) invokeTest(ctx context.Context, m *manifest.ResourceManifest, expected expr.Value) (*Result, error) {
	if m.Test == nil {
		getResult, err := inv.invokeGet(ctx, m, expected)
		if err != nil {
			return nil, err
		}
		return &Result{Expected: expected, AfterState: getResult.AfterState, ChangedProperties: Diff(expected, getResult.AfterState)}, nil
	}
	stdout, err := inv.run(ctx, m.Test, expected)
	if err != nil {
		return nil, annotateExit(err, m, inv.ResourceName)
	}
	return inv.decodeReturn(ctx, m, m.Test, expected, stdout, "test")
}

func (inv *Invoker) invokeSet(ctx context.Context, m *manifest.ResourceManifest, desired expr.Value) (*Result, error) {
	if !m.Set.PreTest {
		testResult, err := inv.invokeTest(ctx, m, desired)
		if err != nil {
			return nil, err
		}
		if len(testResult.ChangedProperties) == 0 {
			return &Result{BeforeState: testResult.Expected, AfterState: testResult.AfterState}, nil
		}
	}

	preStateResult, err := inv.invokeGet(ctx, m, desired)
	if err != nil {
		return nil, err
	}
	preState := preStateResult.AfterState

	stdout, err := inv.run(ctx, m.Set, desired)
	if err != nil {
		return nil, annotateExit(err, m, inv.ResourceName)
	}

	switch m.Set.Return {
	case manifest.ReturnState:
		after, err := decodeJSON(stdout)
		if err != nil {
			return nil, dscerr.Resource("resource set output could not be decoded", err).
				WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName)
		}
		return &Result{BeforeState: preState, AfterState: after, ChangedProperties: Diff(after, preState)}, nil
	case manifest.ReturnStateAndDiff:
		after, changed, err := decodeStateAndDiff(stdout)
		if err != nil {
			return nil, dscerr.Resource("resource set output could not be decoded", err).
				WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName)
		}
		return &Result{BeforeState: preState, AfterState: after, ChangedProperties: changed}, nil
	default:
		getResult, err := inv.invokeGet(ctx, m, desired)
		if err != nil {
			return nil, err
		}
		return &Result{
			BeforeState:       preState,
			AfterState:        getResult.AfterState,
			ChangedProperties: Diff(getResult.AfterState, preState),
		}, nil
	}
}

func (inv *Invoker) decodeReturn(ctx context.Context, m *manifest.ResourceManifest, desc *manifest.OperationDescriptor, expected expr.Value, stdout []byte, op string) (*Result, error) {
	switch desc.Return {
	case manifest.ReturnState:
		actual, err := decodeJSON(stdout)
		if err != nil {
			return nil, dscerr.Resource("resource output could not be decoded", err).
				WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName).WithDetail("operation", op)
		}
		return &Result{Expected: expected, AfterState: actual, ChangedProperties: Diff(expected, actual)}, nil
	case manifest.ReturnStateAndDiff:
		actual, changed, err := decodeStateAndDiff(stdout)
		if err != nil {
			return nil, dscerr.Resource("resource output could not be decoded", err).
				WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName).WithDetail("operation", op)
		}
		return &Result{Expected: expected, AfterState: actual, ChangedProperties: changed}, nil
	default:
		getResult, err := inv.invokeGet(ctx, m, expected)
		if err != nil {
			return nil, err
		}
		return &Result{
			Expected:          expected,
			AfterState:        getResult.AfterState,
			ChangedProperties: Diff(expected, getResult.AfterState),
		}, nil
	}
}

func (inv *Invoker) invokeExport(ctx context.Context, desc *manifest.OperationDescriptor, properties expr.Value) (*Result, error) {
	stdout, err := inv.run(ctx, desc, properties)
	if err != nil {
		return nil, dscerr.Resource("export invocation failed", err).WithResource(inv.ResourceName)
	}
	var states []expr.Value
	for _, line := range strings.Split(strings.TrimRight(string(stdout), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		v, err := decodeJSON([]byte(line))
		if err != nil {
			return nil, dscerr.Resource("export output line could not be decoded", err).
				WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName)
		}
		states = append(states, v)
	}
	return &Result{ExportedStates: states}, nil
}

func (inv *Invoker) invokeSchema(ctx context.Context, desc *manifest.OperationDescriptor) (*Result, error) {
	stdout, err := inv.run(ctx, desc, expr.Value{})
	if err != nil {
		return nil, dscerr.Resource("schema invocation failed", err).WithResource(inv.ResourceName)
	}
	v, err := decodeJSON(stdout)
	if err != nil {
		return nil, dscerr.Resource("schema output could not be decoded", err).
			WithCode(dscerr.CodeBadReturn).WithResource(inv.ResourceName)
	}
	return &Result{AfterState: v}, nil
}

// run spawns desc.Executable with its argv template expanded, wires
// stdin/env per desc.Input, and returns raw stdout. A nonzero exit code
// is reported as a *dscerr.Error carrying the exit code and stderr text;
// callers that want the manifest's human-readable exit message call
// annotateExit.
func (inv *Invoker) run(ctx context.Context, desc *manifest.OperationDescriptor, input expr.Value) ([]byte, error) {
	args, err := expandArgs(desc.Args, input, inv.ResourceName, inv.VaultName)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, desc.Executable, args...)

	switch desc.Input {
	case manifest.InputStdin:
		payload, err := json.Marshal(toJSONCompatible(input))
		if err != nil {
			return nil, dscerr.Internal("failed to marshal resource input", err)
		}
		cmd.Stdin = bytes.NewReader(payload)
	case manifest.InputEnv:
		cmd.Env = append(os.Environ(), envFromProperties(input)...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return nil, dscerr.Resource("resource exited with a nonzero status", nil).
				WithCode(dscerr.CodeNonZeroExit).
				WithDetail("exitCode", exitErr.ExitCode()).
				WithDetail("stderr", stderr.String())
		}
		return nil, dscerr.Resource("failed to spawn resource executable", err).
			WithCode(dscerr.CodeSpawnFailed).WithDetail("executable", desc.Executable)
	}

	return stdout.Bytes(), nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// annotateExit rewrites a nonzero-exit error's message using the
// manifest's exit-code map, per spec §4.5 ("defaulting to 'Error'").
func annotateExit(err error, m *manifest.ResourceManifest, resourceName string) error {
	var de *dscerr.Error
	if e, ok := err.(*dscerr.Error); ok && e.Code == dscerr.CodeNonZeroExit {
		de = e
	} else {
		return err
	}
	code, _ := de.Details["exitCode"].(int)
	return dscerr.Resource(m.ExitMessage(code), nil).
		WithCode(dscerr.CodeNonZeroExit).WithResource(resourceName).
		WithDetail("exitCode", code).WithDetail("stderr", de.Details["stderr"])
}

func expandArgs(tokens []manifest.ArgToken, input expr.Value, resourceName, vaultName string) ([]string, error) {
	var out []string
	for _, t := range tokens {
		switch t.Kind {
		case manifest.ArgLiteral:
			out = append(out, t.Literal)
		case manifest.ArgName:
			if t.Flag != "" {
				out = append(out, t.Flag)
			}
			out = append(out, resourceName)
		case manifest.ArgVault:
			if vaultName == "" {
				continue
			}
			if t.Flag != "" {
				out = append(out, t.Flag)
			}
			out = append(out, vaultName)
		case manifest.ArgJSONInput:
			payload, err := json.Marshal(toJSONCompatible(input))
			if err != nil {
				return nil, dscerr.Internal("failed to marshal JSON input argument", err)
			}
			if t.Flag != "" {
				out = append(out, t.Flag)
			}
			out = append(out, string(payload))
		case manifest.ArgFile:
			f, err := os.CreateTemp("", "dsce-input-*.json")
			if err != nil {
				return nil, dscerr.IO("failed to create temporary input file", err)
			}
			payload, err := json.Marshal(toJSONCompatible(input))
			if err != nil {
				return nil, dscerr.Internal("failed to marshal file input argument", err)
			}
			if _, err := f.Write(payload); err != nil {
				return nil, dscerr.IO("failed to write temporary input file", err)
			}
			f.Close()
			if t.Flag != "" {
				out = append(out, t.Flag)
			}
			out = append(out, f.Name())
		default:
			return nil, dscerr.Internal("unknown arg token kind", nil)
		}
	}
	return out, nil
}

func envFromProperties(v expr.Value) []string {
	keys, ok := v.Keys()
	if !ok {
		return nil
	}
	var env []string
	for _, k := range keys {
		fv, _ := v.Field(k)
		env = append(env, fmt.Sprintf("%s=%s", k, fv.Reveal()))
	}
	return env
}

func decodeJSON(data []byte) (expr.Value, error) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return expr.Value{}, err
	}
	return expr.FromJSON(generic)
}

func decodeStateAndDiff(stdout []byte) (expr.Value, []string, error) {
	lines := strings.SplitN(strings.TrimRight(string(stdout), "\n"), "\n", 2)
	if len(lines) != 2 {
		return expr.Value{}, nil, fmt.Errorf("stateAndDiff output must have two lines, got %d", len(lines))
	}
	state, err := decodeJSON([]byte(lines[0]))
	if err != nil {
		return expr.Value{}, nil, err
	}
	var changed []string
	if err := json.Unmarshal([]byte(lines[1]), &changed); err != nil {
		return expr.Value{}, nil, err
	}
	return state, changed, nil
}

func toJSONCompatible(v expr.Value) interface{} {
	data, _ := json.Marshal(v)
	var generic interface{}
	_ = json.Unmarshal(data, &generic)
	return generic
}
