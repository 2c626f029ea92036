package main

import "github.com/agentic-research/xml2csv/cmd"

func main() {
	cmd.Execute()
}
