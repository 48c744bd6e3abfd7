// Command conventionsctl runs maintenance tasks against the conventions database.
package main

func main() {
	Execute()
}
