package main

import "github.com/crystaldolphin/confidant/cmd"

func main() {
	cmd.Execute()
}
