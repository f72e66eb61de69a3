package main

import (
	"os"

	"github.com/s2e-tools/senv/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
