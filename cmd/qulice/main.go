// Command qulice runs a quality gate over a Go module.
package main

func main() {
	Execute()
}
