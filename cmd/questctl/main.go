package main

import "questlock/cmd/questctl/root"

func main() {
	root.Execute()
}
