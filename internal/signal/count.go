package signal

// Count is the counter state synchronized by the default server.
type Count struct {
	Value int64 `json:"value"`
}

// Increment returns a mutate function adding step to a Count.
func Increment(step int64) func(*Count) {
	return func(c *Count) {
		c.Value += step
	}
}
