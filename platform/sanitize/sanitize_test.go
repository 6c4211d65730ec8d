package sanitize

import "testing"

func TestTextStripsMarkup(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<b>Senior</b> Go developer", "Senior Go developer"},
		{"  Budget:\n\t$5k  ", "Budget: $5k"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;x", "alert(1) x"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	empty := "<br/>"
	if TextPtr(&empty) != nil {
		t.Fatal("expected nil when nothing is left after sanitizing")
	}
	in := "<i>Acme</i>"
	if got := TextPtr(&in); got == nil || *got != "Acme" {
		t.Fatalf("expected Acme, got %v", got)
	}
}
