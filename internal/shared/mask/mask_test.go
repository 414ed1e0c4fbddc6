package mask

import "testing"

func TestAccount(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"123", "***"},
		{"1234", "****"},
		{"9876543210", "******3210"},
	}
	for _, c := range cases {
		if got := Account(c.in); got != c.want {
			t.Errorf("Account(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEmail(t *testing.T) {
	if got := Email("finance@vendor.example"); got != "f***@vendor.example" {
		t.Errorf("Email() = %q", got)
	}
	if got := Email("not-an-email"); got != "****" {
		t.Errorf("Email() = %q", got)
	}
}
