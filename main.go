package main

import "github.com/Pjt727/autosign/cmd"

func main() {
	cmd.Execute()
}
