package main

import "github.com/witw-events/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
