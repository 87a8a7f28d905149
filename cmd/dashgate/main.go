package main

import "github.com/rzbill/dashgate/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
