// mzkit - Mass spectrometry peak processing toolkit
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/mzkit/cmd/mzkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
