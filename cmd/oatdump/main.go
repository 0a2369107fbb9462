package main

import "github.com/oatdump/cmd/oatdump/cmd"

func main() {
	cmd.Execute()
}
