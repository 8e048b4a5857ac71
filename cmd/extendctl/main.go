// Command extendctl manages extend configurations of entities and fields
// and compiles them into schema descriptors.
package main

import (
	"os"

	"github.com/mesh-intelligence/extend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
