package workflow

import "math/bits"

// VestingSchedule returns how much of salary has vested at now for a linear
// schedule starting at start and lasting duration seconds. It is zero before
// start, exactly salary from start+duration on, and rounds down in between.
// A zero duration vests everything at start.
func VestingSchedule(start, duration int64, salary uint64, now int64) uint64 {
	if now < start {
		return 0
	}
	if duration <= 0 {
		return salary
	}
	elapsed := now - start
	if elapsed >= duration {
		return salary
	}
	// salary*elapsed < salary*duration, so the 128-bit quotient fits in 64 bits.
	hi, lo := bits.Mul64(salary, uint64(elapsed))
	quo, _ := bits.Div64(hi, lo, uint64(duration))
	return quo
}

// mulDiv returns floor(a*b/c) for c > 0 and a*b/c < 2^64.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	quo, _ := bits.Div64(hi, lo, c)
	return quo
}
