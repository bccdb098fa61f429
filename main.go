package main

import "github.com/KaramelBytes/promedmap/cmd"

func main() {
	cmd.Execute()
}
