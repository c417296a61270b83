package main

import "github.com/dt-pm-tools/confluence-sync/cmd"

func main() {
	cmd.Execute()
}
