package service

// Attempt runs op up to maxAttempts times, stopping early once isValid
// accepts the result. The last result is returned regardless of validity, so
// a persistently failing operation degrades instead of blocking.
func Attempt[T any](op func() T, maxAttempts int, isValid func(T) bool) T {
	var result T
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result = op()
		if isValid(result) {
			break
		}
	}
	return result
}
