package main

import "github.com/MeKo-Tech/panicle/cmd/panicle/cmd"

func main() {
	cmd.Execute()
}
