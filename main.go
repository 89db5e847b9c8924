package main

import "github.com/sitecraft/sitegen-backend/cmd"

func main() {
	cmd.Init()
}
