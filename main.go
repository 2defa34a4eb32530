package main

import "skycast/cmd"

func main() {
	cmd.Execute()
}
