package main

import (
	"github.com/heterosim/heterosim/cmd"
)

func main() {
	cmd.Execute()
}
