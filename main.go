package main

import "github.com/bascanada/logai-mcp/cmd"

func main() {
	cmd.Execute()
}
