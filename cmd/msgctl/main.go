package main

import "github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/cli"

func main() {
	cli.Execute()
}
