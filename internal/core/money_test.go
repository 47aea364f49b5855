package core

import "testing"

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{"1.200.000₫", 1200000},
		{"1,200,000", 1200000},
		{"450,000 VNĐ", 450000},
		{" 99000 ", 99000},
		{"₫ 5.000", 5000},
		{"-300.000", 300000}, // signs are formatting too
		{"0", 0},
		{"", 0},
		{"n/a", 0},
		{"miễn phí", 0},
	}
	for _, tc := range cases {
		got := NormalizeAmount(tc.in)
		if got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
		if got < 0 {
			t.Fatalf("%q produced negative amount %v", tc.in, got)
		}
	}
}

func TestHasDigits(t *testing.T) {
	if !HasDigits("1.200.000₫") {
		t.Fatalf("expected digits")
	}
	if HasDigits("VNĐ") || HasDigits("") {
		t.Fatalf("expected no digits")
	}
}

func TestFormatAmountRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 99000, 1200000} {
		if got := NormalizeAmount(FormatAmount(v)); got != v {
			t.Fatalf("round trip %v -> %v", v, got)
		}
	}
}
