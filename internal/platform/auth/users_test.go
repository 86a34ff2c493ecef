package auth

import "testing"

func TestParseUsers(t *testing.T) {
	d, err := ParseUsers([]string{"user@aco.org:password", "admin:pa:ss"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Verify("user@aco.org", "password") {
		t.Error("expected valid credentials to verify")
	}
	if !d.Verify("admin", "pa:ss") {
		t.Error("expected password containing a colon to verify")
	}
	if d.Verify("user@aco.org", "wrong") {
		t.Error("expected wrong password to fail")
	}
	if d.Verify("nobody", "password") {
		t.Error("expected unknown user to fail")
	}
	if got := d.Usernames(); len(got) != 2 || got[0] != "admin" {
		t.Errorf("unexpected usernames: %v", got)
	}
}

func TestParseUsers_Invalid(t *testing.T) {
	for _, entries := range [][]string{
		{"no-separator"},
		{":password"},
		{"a:1", "a:2"},
	} {
		if _, err := ParseUsers(entries); err == nil {
			t.Errorf("expected error for %v", entries)
		}
	}
}
