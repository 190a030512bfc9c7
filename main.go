package main

import "github.com/kittybg/kittybg/cmd"

func main() {
	cmd.Execute()
}
