package schema

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a hex fingerprint of the canonical form.
func Hash(s Schema) string {
	return strconv.FormatUint(xxhash.Sum64String(s.Canonical()), 16)
}

// SaltedHash fingerprints the canonical form together with a version number
// and a timestamp, so re-registering an identical definition as a new version
// yields a distinct hash.
func SaltedHash(s Schema, version int, at time.Time) string {
	d := xxhash.New()
	_, _ = d.WriteString(s.Canonical())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(version))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.FormatInt(at.UnixNano(), 10))
	return strconv.FormatUint(d.Sum64(), 16)
}
