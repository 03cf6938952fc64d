package main

import (
	"os"

	"github.com/ls-1801/VMLauncher/cmd/vmlauncher/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
