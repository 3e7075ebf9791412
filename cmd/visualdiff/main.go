// Command visualdiff compares screenshots with SSIM and writes annotated
// side-by-side composites.
package main

import (
	"fmt"
	"os"
)

const (
	AppName    = "visualdiff"
	AppVersion = "1.0.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
