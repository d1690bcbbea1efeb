// Command beach hosts or joins a shared terminal session (spec §6.5).
package main

import "os"

func main() {
	os.Exit(Execute())
}
