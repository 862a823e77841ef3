package main

import "github.com/mvp-joe/splitter/internal/cli"

func main() {
	cli.Execute()
}
