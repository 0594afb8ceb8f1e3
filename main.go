// main.go
package main

import (
	"os"

	"videoenhancer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
