package main

import "github.com/m3rciful/orbitbot/core/cmd"

func main() {
	cmd.Execute()
}
