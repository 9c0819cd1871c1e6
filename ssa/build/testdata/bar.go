package main

func bar(n uint32) uint32 {
	return n * n
}
