package main

import "soc-alert-relay-go/cmd"

func main() {
	cmd.Execute()
}
