// Package main is wavegate's CLI entry point.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/harrison/wavegate/internal/cmd"
)

func main() {
	root := cmd.NewRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if strings.Contains(err.Error(), "unknown command") {
			os.Exit(2)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
