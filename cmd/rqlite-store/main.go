// Command rqlite-store loads, saves, lists and removes entities stored in an
// rqlite cluster, and serves a read-only dump of them over HTTP.
package main

import "os"

func main() {
	os.Exit(Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
