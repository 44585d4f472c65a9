package main

import "mazefi/cmd/mazefi-sim/cmd"

func main() {
	cmd.Execute()
}
