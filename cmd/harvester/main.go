package main

import "github.com/pressfeed/harvester/cmd"

func main() {
	cmd.Execute()
}
