package main

func mix() int32 {
	var v1 int32
	for v2 := int32(0); v2 < 100; v2++ {
		if v2%3 != 0 {
			v1 += 3
		} else {
			v1 += 2
		}
	}
	return v1
}

func main() {
	println(mix())
}
