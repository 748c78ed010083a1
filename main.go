package main

import "github.com/surge-downloader/plugd/cmd"

func main() {
	cmd.Execute()
}
