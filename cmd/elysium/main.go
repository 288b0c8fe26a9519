package main

import "github.com/elysium-hub/elysium/cmd/elysium/cmd"

func main() {
	cmd.Execute()
}
