package main

func count(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func dead(n uint32) uint32 {
	for i := uint32(0); i < n; i++ {
	}
	return n
}

func main() {
	println(count("abc"), dead(3))
}
