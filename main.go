package main

import "github.com/tavolo/ordering/cmd"

func main() {
	cmd.Start()
}
