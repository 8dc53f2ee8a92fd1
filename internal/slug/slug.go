// Package slug generates the public identifiers used in file URLs.
package slug

import "github.com/lithammer/shortuuid/v4"

// Length is the number of characters in a generated slug.
const Length = 22

// New returns a random base57 short UUID.
func New() string {
	return shortuuid.New()
}
