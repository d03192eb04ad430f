package main

import "github.com/KaramelBytes/vizcheck-cli/cmd"

func main() {
	cmd.Execute()
}
