package main

import "github.com/vincentbai/browsetrace-audit/internal/cli"

func main() {
	cli.Execute()
}
