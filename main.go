package main

import "github.com/Mohsinsiddi/w3probe/cmd"

func main() {
	cmd.Execute()
}
