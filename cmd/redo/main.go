// Command redo runs YAML command workflows incrementally and inspects their logs.
package main

func main() {
	Execute()
}
