package main

import "github.com/fcch/access-control/cmd/auth-server/cmd"

func main() {
	cmd.Execute()
}
