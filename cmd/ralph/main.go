package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/thruflo/ralph/internal/cli"
)

func main() {
	err := cli.Execute()
	if err == nil {
		return
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
