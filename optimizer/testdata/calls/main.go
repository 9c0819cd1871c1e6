package main

func sq(x int64) int64 {
	return x * x
}

func sumsq(n int64) int64 {
	var s int64
	for i := int64(n); i > 0; i-- {
		s += sq(i)
	}
	return s
}

func cube(x int64) int64 {
	return x * sq(x)
}

func main() {
	println(sumsq(4))
}
