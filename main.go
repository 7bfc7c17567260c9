package main

import "github.com/agentic-research/sodacat-web/cmd"

func main() {
	cmd.Execute()
}
