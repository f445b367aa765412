package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/dsce/pkg/policy"
)

const denyOnDeleteRego = `
package dsce.policies.nodelete

deny[msg] {
	input.operation == "set"
	input.properties.ensure == "absent"
	msg := sprintf("%s: deletion is not permitted by policy", [input.resourceName])
}
`

const warnOnWideOpenRego = `
package dsce.policies.firewall

deny[msg] {
	input.properties.cidr == "0.0.0.0/0"
	msg := "security group allows unrestricted ingress"
}
`

func TestEvaluateAllowsWhenNoPolicyDenies(t *testing.T) {
	gate := policy.NewGate()
	require.NoError(t, gate.Load("nodelete", denyOnDeleteRego, policy.SeverityError))

	violations, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation:    "set",
		ResourceType: "Test/Null",
		ResourceName: "first",
		Properties:   map[string]interface{}{"ensure": "present"},
	})
	require.NoError(t, err)
	require.True(t, allowed)
	require.Empty(t, violations)
}

func TestEvaluateDeniesAndBlocksOnErrorSeverity(t *testing.T) {
	gate := policy.NewGate()
	require.NoError(t, gate.Load("nodelete", denyOnDeleteRego, policy.SeverityError))

	violations, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation:    "set",
		ResourceType: "Test/Null",
		ResourceName: "first",
		Properties:   map[string]interface{}{"ensure": "absent"},
	})
	require.NoError(t, err)
	require.False(t, allowed)
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Message, "deletion is not permitted")
}

func TestEvaluateWarnSeverityRecordsButDoesNotBlock(t *testing.T) {
	gate := policy.NewGate()
	require.NoError(t, gate.Load("firewall", warnOnWideOpenRego, policy.SeverityWarn))

	violations, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation:    "set",
		ResourceType: "Net/SecurityGroup",
		ResourceName: "open-ingress",
		Properties:   map[string]interface{}{"cidr": "0.0.0.0/0"},
	})
	require.NoError(t, err)
	require.True(t, allowed)
	require.Len(t, violations, 1)
	require.Equal(t, policy.SeverityWarn, violations[0].Severity)
}

func TestEvaluateRunsMultiplePoliciesIndependently(t *testing.T) {
	gate := policy.NewGate()
	require.NoError(t, gate.Load("nodelete", denyOnDeleteRego, policy.SeverityError))
	require.NoError(t, gate.Load("firewall", warnOnWideOpenRego, policy.SeverityWarn))

	violations, allowed, err := gate.Evaluate(context.Background(), policy.Input{
		Operation:    "set",
		ResourceType: "Net/SecurityGroup",
		ResourceName: "open-ingress",
		Properties:   map[string]interface{}{"ensure": "present", "cidr": "0.0.0.0/0"},
	})
	require.NoError(t, err)
	require.True(t, allowed)
	require.Len(t, violations, 1)
}

func TestLoadRejectsInvalidRego(t *testing.T) {
	gate := policy.NewGate()
	err := gate.Load("broken", "not valid rego at all {{{", policy.SeverityError)
	require.Error(t, err)
}
