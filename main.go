package main

import "github.com/ValentinKolb/dPack/cmd"

func main() {
	cmd.Execute()
}
