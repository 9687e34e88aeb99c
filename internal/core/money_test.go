package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		err   error
	}{
		{"25", 2500, nil},
		{"25.00", 2500, nil},
		{"-5.00", -500, nil},
		{"-5", -500, nil},
		{"12,34", 1234, nil},
		{"12.345", 1235, nil}, // half-up on the third decimal
		{"0", 0, ErrZeroAmount},
		{"0.00", 0, ErrZeroAmount},
		{"", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"1.2.3", 0, ErrInvalidAmount},
	}
	for _, tc := range cases {
		m, err := ParseAmount(tc.in)
		if tc.err != nil {
			if err != tc.err {
				t.Fatalf("ParseAmount(%q) err = %v, want %v", tc.in, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
		}
		if m.Cents != tc.cents {
			t.Fatalf("ParseAmount(%q) = %d cents, want %d", tc.in, m.Cents, tc.cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: -500}).String(); got != "-5.00" {
		t.Fatalf("String = %q, want -5.00", got)
	}
	if got := (Money{Cents: 2000}).String(); got != "20.00" {
		t.Fatalf("String = %q, want 20.00", got)
	}
}

func TestMoneyNeg(t *testing.T) {
	if got := (Money{Cents: 150}).Neg(); got.Cents != -150 {
		t.Fatalf("Neg = %d, want -150", got.Cents)
	}
}
