package main

import "github.com/linanwx/waitbot/cmd"

func main() {
	cmd.Execute()
}
