package main

import "github.com/kashguard/go-keypool/cmd"

func main() {
	cmd.Execute()
}
