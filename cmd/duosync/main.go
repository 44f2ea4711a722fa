// Command duosync keeps a partner conversation and notification feed in sync with the
// backend. It runs as a local daemon a UI can drive, or performs one-shot operations.
package main

func main() {
	Execute()
}
