// Package plan implements the dependency planner (L9): it turns a
// configuration document's resource list into a linear invocation order
// where every dependency precedes its dependent, detecting cycles and
// malformed or dangling dependsOn references along the way.
package plan

import (
	"regexp"

	"github.com/openfroyo/dsce/pkg/document"
	"github.com/openfroyo/dsce/pkg/dscerr"
)

// dependsOnPattern matches one dependsOn entry: [resourceId('<type>','<name>')],
// whitespace tolerated around the arguments.
var dependsOnPattern = regexp.MustCompile(`^\[resourceId\(\s*'([a-zA-Z0-9.]+/[a-zA-Z0-9]+)'\s*,\s*'([a-zA-Z0-9 ]+)'\s*\)\]$`)

type identity struct {
	name string
	typ  string
}

// BuildOrder produces a topological ordering of resources such that every
// dependency appears before its dependent. The algorithm is the exact
// single-pass walk spec.md §4.6 describes: for each resource in source
// order, its unresolved dependencies are pushed into the order ahead of
// it; a resource already present when revisited signals either "already
// placed as someone else's dependency" (fine) or, if it was placed there
// by declaring dependencies that still point to a later position, a
// cycle.
func BuildOrder(resources []document.ResourceInstance) ([]document.ResourceInstance, error) {
	var order []document.ResourceInstance
	index := make(map[identity]int)

	contains := func(id identity) (int, bool) {
		i, ok := index[id]
		return i, ok
	}
	push := func(r document.ResourceInstance) {
		index[identity{name: r.Name, typ: r.Type}] = len(order)
		order = append(order, r)
	}

	for _, resource := range resources {
		if countMatching(resources, resource.Name, resource.Type) > 1 {
			return nil, dscerr.Validation("resource is specified more than once in the configuration", nil).
				WithCode(dscerr.CodeDuplicateResource).WithResource(resource.Name)
		}

		dependencyAlreadyInOrder := true
		for _, dep := range resource.DependsOn {
			depType, depName, err := parseDependsOn(dep, resource.Name)
			if err != nil {
				return nil, err
			}

			depResource, ok := findByName(resources, depName)
			if !ok {
				return nil, dscerr.Validation("dependsOn resource name does not exist", nil).
					WithCode(dscerr.CodeMissingDependency).
					WithResource(resource.Name).WithDetail("dependsOn", depName)
			}
			if depResource.Type != depType {
				return nil, dscerr.Validation("dependsOn resource type does not match the referenced resource's declared type", nil).
					WithCode(dscerr.CodeTypeMismatch).
					WithResource(resource.Name).
					WithDetail("expectedType", depResource.Type).WithDetail("referencedType", depType)
			}

			if _, already := contains(identity{name: depName, typ: depType}); already {
				continue
			}
			push(depResource)
			dependencyAlreadyInOrder = false
		}

		if idx, already := contains(identity{name: resource.Name, typ: resource.Type}); already {
			if len(resource.DependsOn) > 0 && dependencyAlreadyInOrder {
				for _, dep := range resource.DependsOn {
					depType, depName, _ := parseDependsOn(dep, resource.Name)
					depIdx := index[identity{name: depName, typ: depType}]
					if idx < depIdx {
						return nil, dscerr.Validation("circular dependency detected", nil).
							WithCode(dscerr.CodeCycle).WithResource(resource.Name)
					}
				}
			}
			continue
		}

		push(resource)
	}

	return order, nil
}

// DependencyNames returns the resource names r.DependsOn refers to, in
// declaration order. It assumes r has already passed BuildOrder (so every
// entry is syntactically valid) and is used by the configurator to
// propagate "skipped: dependency failed" through transitively dependent
// resources.
func DependencyNames(r document.ResourceInstance) ([]string, error) {
	names := make([]string, 0, len(r.DependsOn))
	for _, dep := range r.DependsOn {
		_, name, err := parseDependsOn(dep, r.Name)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func parseDependsOn(dep, resourceName string) (typ, name string, err error) {
	m := dependsOnPattern.FindStringSubmatch(dep)
	if m == nil {
		return "", "", dscerr.Validation("dependsOn syntax is incorrect", nil).
			WithCode(dscerr.CodeBadDependsOn).WithResource(resourceName).WithDetail("dependsOn", dep)
	}
	return m[1], m[2], nil
}

func countMatching(resources []document.ResourceInstance, name, typ string) int {
	n := 0
	for _, r := range resources {
		if r.Name == name && r.Type == typ {
			n++
		}
	}
	return n
}

func findByName(resources []document.ResourceInstance, name string) (document.ResourceInstance, bool) {
	for _, r := range resources {
		if r.Name == name {
			return r, true
		}
	}
	return document.ResourceInstance{}, false
}
