package main

import "github.com/vietddude/teamsync/internal/cli"

func main() {
	cli.Execute()
}
