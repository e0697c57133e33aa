package main

import "hero-mint-service/cmd/mintctl/cmd"

func main() {
	cmd.Execute()
}
