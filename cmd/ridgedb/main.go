// Command ridgedb is the operator-facing CLI for the ridgedb document
// store: start the in-process server, inspect collections, and manage
// indexes. Grounded on the teacher's cmd/bd entrypoint shape.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
