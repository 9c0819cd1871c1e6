package main

func main() {
	println(foo(10), bar(3))
}
