// Package main provides the Halyard sync core entry point.
// The core is a platform-agnostic library consumed by the mobile and
// desktop shells; this binary only stamps the build version.
package main

import "fmt"

// Version is set at build time
var Version = "0.1.0"

func main() {
	fmt.Printf("Halyard Core v%s\n", Version)
}
