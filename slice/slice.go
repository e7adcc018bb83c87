package slice

// Map returns a new slice holding pred applied to each element of input.
func Map[T any, U any](input []T, pred func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = pred(v)
	}
	return result
}

// Count returns the number of elements in input for which pred holds.
func Count[T any](input []T, pred func(T) bool) int {
	n := 0
	for _, v := range input {
		if pred(v) {
			n++
		}
	}
	return n
}
