package main

import "github.com/camden-git/facesession/cmd"

func main() {
	cmd.Execute()
}
