package plan

import (
	"fmt"
	"strings"

	"github.com/openfroyo/dsce/pkg/document"
)

// Levels computes a Kahn's-algorithm grouping of order into waves where
// every resource in a wave depends only on resources in earlier waves.
// This is never used to drive invocation — spec §5 mandates strictly
// sequential invocation in the linear order BuildOrder already returns —
// it exists purely as a debug view, adapted from the teacher's DAGBuilder
// level computation, for ToDOT-style visualization of what *could* run
// concurrently.
func Levels(order []document.ResourceInstance) [][]string {
	idOf := func(r document.ResourceInstance) string { return r.Type + "/" + r.Name }

	inDegree := make(map[string]int, len(order))
	dependents := make(map[string][]string)
	byID := make(map[string]document.ResourceInstance, len(order))

	for _, r := range order {
		id := idOf(r)
		byID[id] = r
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}
		for _, dep := range r.DependsOn {
			depType, depName, err := parseDependsOn(dep, r.Name)
			if err != nil {
				continue
			}
			depID := depType + "/" + depName
			dependents[depID] = append(dependents[depID], id)
			inDegree[id]++
		}
	}

	var levels [][]string
	remaining := len(order)
	for remaining > 0 {
		var wave []string
		for id, deg := range inDegree {
			if deg == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			// A genuine cycle would already have been rejected by BuildOrder;
			// this is a defensive stop to avoid looping forever.
			break
		}
		for _, id := range wave {
			delete(inDegree, id)
			remaining--
			for _, next := range dependents[id] {
				inDegree[next]--
			}
		}
		levels = append(levels, wave)
	}
	return levels
}

// ToDOT renders order's dependency edges as a Graphviz DOT document for
// debugging, the way the teacher's ExecutionGraph.ToDOT visualizes a
// DAGBuilder plan.
func ToDOT(order []document.ResourceInstance) string {
	var sb strings.Builder
	sb.WriteString("digraph plan {\n")
	for _, r := range order {
		id := fmt.Sprintf("%s/%s", r.Type, r.Name)
		sb.WriteString(fmt.Sprintf("  %q;\n", id))
		for _, dep := range r.DependsOn {
			depType, depName, err := parseDependsOn(dep, r.Name)
			if err != nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", depType+"/"+depName, id))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
