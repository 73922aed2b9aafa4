package main

import "github.com/strrl/jwt-lens/cmd/jwtlens/commands"

func main() {
	commands.Execute()
}
