package main

import "github.com/fcch/access-control/cmd/door-controller/cmd"

func main() {
	cmd.Execute()
}
