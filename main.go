package main

import "github.com/rosiebot/rosie/cmd"

func main() {
	cmd.Execute()
}
