package main

import "github.com/creatorstation/radarlcd/internal/cli"

func main() {
	cli.Execute()
}
