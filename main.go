package main

import "github.com/kebairia/drivebackup/cmd"

func main() {
	cmd.Execute()
}
