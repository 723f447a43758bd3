package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/danshapiro/refinery/cmd/refinery/cmd"
)

func main() {
	cmd.Execute()
}
