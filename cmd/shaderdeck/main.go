package main

import "github.com/panyam/shaderdeck/cmd/shaderdeck/commands"

func main() {
	commands.Execute()
}
