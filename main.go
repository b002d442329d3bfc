package main

import "github.com/turbolytics/resultset/internal/cmd"

func main() {
	cmd.Execute()
}
