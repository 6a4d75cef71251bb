package main

import "wyniki-crawler/cmd/wyniki-crawler/cmd"

func main() {
	cmd.Execute()
}
