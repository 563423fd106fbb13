package main

import "github.com/saravenpi/parley/cmd"

func main() {
	cmd.Execute()
}
