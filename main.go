package main

import "github.com/weed35937/tele-bot-digital/cmd"

func main() {
	cmd.Execute()
}
