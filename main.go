package main

import "github.com/maxmcd/shaderloom/internal/command"

func main() {
	command.RunCLI()
}
