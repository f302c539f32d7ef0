package main

import "github.com/forPelevin/vid2gif/internal/cli"

func main() {
	cli.Main()
}
