package phone

import "testing"

func TestNormalizeE164UsesCountryCodeForNationalNumbers(t *testing.T) {
	got, err := NormalizeE164("06 12345678", "+31")
	if err != nil {
		t.Fatalf("NormalizeE164 returned error: %v", err)
	}
	if got != "+31612345678" {
		t.Fatalf("expected +31612345678, got %q", got)
	}
}

func TestNormalizeE164KeepsInternationalPrefix(t *testing.T) {
	got, err := NormalizeE164("+1 650 253 0000", "+31")
	if err != nil {
		t.Fatalf("NormalizeE164 returned error: %v", err)
	}
	if got != "+16502530000" {
		t.Fatalf("expected +16502530000, got %q", got)
	}
}

func TestNormalizeE164RejectsGarbage(t *testing.T) {
	if _, err := NormalizeE164("not a number", "+31"); err == nil {
		t.Fatal("expected error for non-numeric input")
	}
	if _, err := NormalizeE164("", "+31"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseCountryCode(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"+31", 31, true},
		{"44", 44, true},
		{"0049", 49, true},
		{"+999", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCountryCode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseCountryCode(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseCountryCode(%q) expected error", tc.in)
		}
	}
}
