package offers

import (
	"errors"
	"testing"
)

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10", "10"},
		{"10.00", "10"},
		{"9.999", "10"},
		{"9.99", "9.99"},
		{"0.5", "0.5"},
		{"0.50", "0.5"},
		{"  12.30 ", "12.3"},
		{"1234.567", "1234.57"},
		{"7.", "7"},
		// Half cents round to the nearest even cent.
		{"1.125", "1.12"},
		{"1.135", "1.14"},
		{"2.005", "2"},
	}
	for _, tc := range cases {
		got, err := NormalizePrice(tc.in)
		if err != nil {
			t.Fatalf("NormalizePrice(%q): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("NormalizePrice(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePriceIdempotent(t *testing.T) {
	inputs := []string{"10", "9.999", "0.50", "3.14159", "1000000.01", "2"}
	for _, in := range inputs {
		once, err := NormalizePrice(in)
		if err != nil {
			t.Fatalf("NormalizePrice(%q): %v", in, err)
		}
		twice, err := NormalizePrice(once)
		if err != nil {
			t.Fatalf("NormalizePrice(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizePriceRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-1", "-0.01", "1,50", "$5"} {
		if _, err := NormalizePrice(in); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("NormalizePrice(%q) = %v, want ErrInvalidPrice", in, err)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{"5", 5, true},
		{" 42 ", 42, true},
		{"-1", 0, false},
		{"1.5", 0, false},
		{"many", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseQuantity(tc.in)
		if tc.ok {
			if err != nil {
				t.Errorf("ParseQuantity(%q): unexpected error %v", tc.in, err)
				continue
			}
			if got != tc.want {
				t.Errorf("ParseQuantity(%q) = %d, want %d", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("ParseQuantity(%q) = %v, want ErrInvalidQuantity", tc.in, err)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID(" 17 "); err != nil || id != 17 {
		t.Fatalf("ParseID(17) = %d, %v", id, err)
	}
	for _, in := range []string{"", "x", "0", "-3", "1.2"} {
		if _, err := ParseID(in); !errors.Is(err, ErrInvalidID) {
			t.Errorf("ParseID(%q) = %v, want ErrInvalidID", in, err)
		}
	}
}
