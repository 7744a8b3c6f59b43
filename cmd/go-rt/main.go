// Command go-rt runs synthetic workloads on a go-rt Runtime.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/go-rt/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
