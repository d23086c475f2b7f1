// Public domain.

package main

import "github.com/soniakeys/specred/internal/srprog"

func main() {
	srprog.Main()
}
