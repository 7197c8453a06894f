package main

import "github.com/nextlevelbuilder/hrdesk/cmd"

func main() {
	cmd.Execute()
}
