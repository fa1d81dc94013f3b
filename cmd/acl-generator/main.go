package main

import "github.com/fcch/access-control/cmd/acl-generator/cmd"

func main() {
	cmd.Execute()
}
