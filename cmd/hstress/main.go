package main

import "hstress/cmd"

func main() {
	cmd.Execute()
}
