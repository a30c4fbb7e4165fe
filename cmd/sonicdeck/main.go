// ABOUTME: Entry point for the sonicdeck CLI
// ABOUTME: Hands control to the cobra command tree
// Package main provides the sonicdeck CLI.
package main

func main() {
	Execute()
}
