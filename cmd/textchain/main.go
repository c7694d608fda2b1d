package main

import "github.com/vietddude/textchain/internal/cli"

func main() {
	cli.Execute()
}
