package main

import "github.com/icco/riffloop/cmd"

func main() {
	cmd.Execute()
}
