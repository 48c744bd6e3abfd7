package clock

import (
	"testing"
	"time"
)

func TestDay(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 00:30 in Paris is still the previous day in UTC; Day keeps the local calendar date.
	in := time.Date(2024, 3, 1, 0, 30, 0, 0, paris)
	if got, want := Day(in), Date(2024, 3, 1); !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	c := Fixed(at)
	if !c.Now().Equal(at) {
		t.Errorf("Now() = %v, want %v", c.Now(), at)
	}
	if got := Today(c); !got.Equal(Date(2024, 6, 1)) {
		t.Errorf("Today() = %v, want 2024-06-01", got)
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", Date(2024, 1, 1), Date(2024, 1, 1), 0},
		{"forward", Date(2024, 1, 1), Date(2024, 1, 31), 30},
		{"leap february", Date(2024, 2, 1), Date(2024, 3, 1), 29},
		{"backward", Date(2024, 4, 15), Date(2024, 3, 31), -15},
		{"ignores time of day", time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), Date(2024, 1, 2), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}
