package main

import "release-tools/go/release-builder/cmd"

func main() {
	cmd.Execute()
}
