package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/policy"
)

const denyWideOpenRego = `
package dsce.policies.wideopen

deny[msg] {
	input.properties.cidr == "0.0.0.0/0"
	msg := "0.0.0.0/0 is not permitted"
}
`

const allowAllRego = `
package dsce.policies.allowall

deny[msg] {
	false
	msg := "unreachable"
}
`

func writeRegoFile(t *testing.T, dir, name, source string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(source), 0o644))
}

func TestLoadPopulatesGateFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeRegoFile(t, dir, "wideopen.rego", denyWideOpenRego)
	writeRegoFile(t, dir, "allowall.rego", allowAllRego)
	writeRegoFile(t, dir, "notes.txt", "not a policy")

	gate := policy.NewGate()
	require.NoError(t, policy.NewLoader(gate, dir).Load())

	violations, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation: "set", ResourceType: "Test/Net", ResourceName: "a",
		Properties: map[string]interface{}{"cidr": "0.0.0.0/0"},
	})
	require.NoError(t, err)
	require.False(t, allowed)
	require.Len(t, violations, 1)
}

func TestLoadAtWarnSeverityForDotWarnFiles(t *testing.T) {
	dir := t.TempDir()
	writeRegoFile(t, dir, "wideopen.warn.rego", denyWideOpenRego)

	gate := policy.NewGate()
	require.NoError(t, policy.NewLoader(gate, dir).Load())

	violations, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation: "set", ResourceType: "Test/Net", ResourceName: "a",
		Properties: map[string]interface{}{"cidr": "0.0.0.0/0"},
	})
	require.NoError(t, err)
	require.True(t, allowed)
	require.Len(t, violations, 1)
	require.Equal(t, policy.SeverityWarn, violations[0].Severity)
}

func TestLoadReplacesPriorPolicySet(t *testing.T) {
	dir := t.TempDir()
	writeRegoFile(t, dir, "wideopen.rego", denyWideOpenRego)

	gate := policy.NewGate()
	loader := policy.NewLoader(gate, dir)
	require.NoError(t, loader.Load())

	require.NoError(t, os.Remove(filepath.Join(dir, "wideopen.rego")))
	writeRegoFile(t, dir, "allowall.rego", allowAllRego)
	require.NoError(t, loader.Load())

	_, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation: "set", ResourceType: "Test/Net", ResourceName: "a",
		Properties: map[string]interface{}{"cidr": "0.0.0.0/0"},
	})
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestWatchReloadsGateWhenAPolicyFileIsAdded(t *testing.T) {
	dir := t.TempDir()
	writeRegoFile(t, dir, "allowall.rego", allowAllRego)

	gate := policy.NewGate()
	loader := policy.NewLoader(gate, dir)
	require.NoError(t, loader.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	writeRegoFile(t, dir, "wideopen.rego", denyWideOpenRego)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, allowed, err := gate.Evaluate(context.Background(), policy.Input{
			Operation: "set", ResourceType: "Test/Net", ResourceName: "a",
			Properties: map[string]interface{}{"cidr": "0.0.0.0/0"},
		})
		require.NoError(t, err)
		if !allowed {
			cancel()
			<-done
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatal("policy directory watch did not pick up the new file in time")
}
