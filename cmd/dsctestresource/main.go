// Command dsctestresource is the "Test/Null" resource executable referenced
// by the fixture manifests in pkg/manifest's and pkg/discovery's tests.
// It implements the wire protocol of §6.2 for a
// resource with no real external state: whatever properties it is given on
// stdin, it reports back as the observed state, so get/test/set against it
// are always convergent — useful for exercising the planner and
// configurator without depending on a real managed resource.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "dsctestresource: missing operation argument")
		os.Exit(1)
	}

	op := os.Args[1]
	switch op {
	case "get", "test":
		runEcho()
	case "set":
		runSet()
	case "export":
		runExport()
	case "schema":
		runSchema()
	default:
		fmt.Fprintf(os.Stderr, "dsctestresource: unknown operation %q\n", op)
		os.Exit(1)
	}
}

func readStdin() (map[string]interface{}, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// runEcho answers get/test by reporting the input properties back
// unchanged, which is always an exact match against the desired state.
func runEcho() {
	props, err := readStdin()
	if err != nil {
		fail(err)
	}
	emit(props)
}

// runSet reports the input as the post-set state and an empty changed-
// properties list, matching its manifest's "stateAndDiff" return mode and
// preTest:true (the engine never calls test first, so set must report its
// own diff).
func runSet() {
	props, err := readStdin()
	if err != nil {
		fail(err)
	}
	emit(props)
	fmt.Println("[]")
}

// runExport reports the input properties as the sole exported instance,
// one JSON object per line.
func runExport() {
	props, err := readStdin()
	if err != nil {
		fail(err)
	}
	emit(props)
}

// runSchema reports a permissive schema: any object is accepted, matching
// the fixture's role as a stand-in for an untyped resource.
func runSchema() {
	emit(map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
	})
}

func emit(v interface{}) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
