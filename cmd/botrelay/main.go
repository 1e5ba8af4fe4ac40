package main

import "botrelay/cmd/botrelay/command"

func main() {
	command.Execute()
}
