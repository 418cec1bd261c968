package main

import "github.com/yuwei/yunduanban-runner/pkg/cli"

func main() {
	cli.Execute()
}
