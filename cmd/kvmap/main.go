package main

import "github.com/MeKo-Tech/kvmap/cmd/kvmap/cmd"

func main() {
	cmd.Execute()
}
