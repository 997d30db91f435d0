package workflow

import (
	"math"
	"testing"
)

func TestVestingSchedule(t *testing.T) {
	const start, duration = int64(1000), int64(100)

	tests := []struct {
		name   string
		salary uint64
		now    int64
		want   uint64
	}{
		{"before start", 1000, start - 1, 0},
		{"at start", 1000, start, 0},
		{"half way", 1000, start + 50, 500},
		{"rounds down", 999, start + 50, 499},
		{"one before end", 1000, start + duration - 1, 990},
		{"at end", 1000, start + duration, 1000},
		{"after end", 1000, start + duration + 1, 1000},
		{"large salary", math.MaxUint64, start + 50, math.MaxUint64 / 2},
		{"large salary at end", math.MaxUint64, start + duration, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VestingSchedule(start, duration, tt.salary, tt.now)
			if got != tt.want {
				t.Errorf("Expected %d but got %d", tt.want, got)
			}
		})
	}
}

func TestVestingScheduleZeroDuration(t *testing.T) {
	if got := VestingSchedule(10, 0, 700, 9); got != 0 {
		t.Errorf("Expected 0 before start but got %d", got)
	}
	if got := VestingSchedule(10, 0, 700, 10); got != 700 {
		t.Errorf("Expected full salary at start but got %d", got)
	}
}

func TestVestingScheduleMonotonic(t *testing.T) {
	const salary = uint64(1_234_567)
	prev := uint64(0)
	for now := int64(-10); now <= 1_100; now++ {
		got := VestingSchedule(0, 997, salary, now)
		if got < prev {
			t.Fatalf("Expected vesting to be non-decreasing at %d: %d < %d", now, got, prev)
		}
		if got > salary {
			t.Fatalf("Expected vesting to stay below salary at %d but got %d", now, got)
		}
		prev = got
	}
	if prev != salary {
		t.Errorf("Expected full salary after the end but got %d", prev)
	}
}

func TestMulDiv(t *testing.T) {
	if got := mulDiv(1000, 60_000_000, SalaryPrecision); got != 600 {
		t.Errorf("Expected 600 but got %d", got)
	}
	if got := mulDiv(math.MaxUint64, SalaryPrecision, SalaryPrecision); got != math.MaxUint64 {
		t.Errorf("Expected max uint64 but got %d", got)
	}
}
