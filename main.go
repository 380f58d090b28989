package main

import "github.com/josephlewis42/dash/cmd"

func main() {
	cmd.Execute()
}
