package main

import (
	"github.com/onflow/consensus-bench/cmd/bench/cmd"
)

func main() {
	cmd.Execute()
}
