package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"
)

// Directory holds the configured demo users. Passwords are kept only as
// SHA-256 digests so every comparison has the same length.
type Directory struct {
	digests map[string][]byte
	decoy   []byte
}

// ParseUsers builds a directory from "username:password" entries. The
// password may itself contain colons.
func ParseUsers(entries []string) (*Directory, error) {
	d := &Directory{digests: make(map[string][]byte, len(entries))}
	for _, entry := range entries {
		username, password, ok := strings.Cut(entry, ":")
		username = strings.TrimSpace(username)
		if !ok || username == "" {
			return nil, fmt.Errorf("invalid user entry %q: want username:password", entry)
		}
		if _, dup := d.digests[username]; dup {
			return nil, fmt.Errorf("duplicate user %q", username)
		}
		sum := sha256.Sum256([]byte(password))
		d.digests[username] = sum[:]
	}
	decoy := sha256.Sum256([]byte("\x00unknown-user"))
	d.decoy = decoy[:]
	return d, nil
}

// Verify reports whether password belongs to username. Unknown users still
// go through a full comparison.
func (d *Directory) Verify(username, password string) bool {
	want, known := d.digests[username]
	if !known {
		want = d.decoy
	}
	got := sha256.Sum256([]byte(password))
	match := subtle.ConstantTimeCompare(want, got[:]) == 1
	return known && match
}

func (d *Directory) Usernames() []string {
	names := make([]string, 0, len(d.digests))
	for name := range d.digests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
