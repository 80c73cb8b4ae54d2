package main

import "github.com/kozaktomas/fusion-batch/cmd"

func main() {
	cmd.Execute()
}
