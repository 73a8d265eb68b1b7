package main

import "github.com/ridoystarlord/discontented/cmd"

func main() {
	cmd.Execute()
}
