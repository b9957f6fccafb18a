package main

import "leakcheck/cmd"

func main() {
	cmd.Execute()
}
