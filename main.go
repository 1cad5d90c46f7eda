package main

import "github.com/naka-gawa/gitdash/cmd"

func main() {
	cmd.Execute()
}
