// Command mutools post-processes the output of MUSIC runs.
package main

import "github.com/banshee-data/mutools/internal/cli"

func main() {
	cli.Execute()
}
