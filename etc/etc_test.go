package etc

import "testing"

func TestMillis(t *testing.T) {
	tests := map[int64]string{
		0:       "0:00.000",
		-5:      "0:00.000",
		1500:    "0:01.500",
		61001:   "1:01.001",
		3600000: "60:00.000",
	}
	for ms, want := range tests {
		if got := Millis(ms); got != want {
			t.Errorf("Millis(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestNewFreshIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewFreshID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
