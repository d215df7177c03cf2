package main

import "github.com/mnehpets/jrpc/cmd/jrpc/cmd"

func main() {
	cmd.Execute()
}
