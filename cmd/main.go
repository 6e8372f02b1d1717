package main

import (
	cmd "flibrary/cmd/flibrary"
)

func main() {
	cmd.Execute()
}
