package models

import (
	"strconv"
	"strings"
)

// Count is a non-negative tally that may be unknown.
type Count int

// CountAbsent marks a count the service did not report. It renders as "N/A"
// so a missing field is never mistaken for zero findings.
const CountAbsent Count = -1

// Known reports whether the service supplied the count.
func (c Count) Known() bool { return c >= 0 }

func (c Count) String() string {
	if !c.Known() {
		return "N/A"
	}
	return strconv.Itoa(int(c))
}

// MarshalJSON encodes an absent count as null.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

// Image is a base64-encoded PNG. The empty string means no image.
type Image string

const dataURIPrefix = "data:image/png;base64,"

// Present reports whether an image was returned.
func (i Image) Present() bool { return strings.TrimSpace(string(i)) != "" }

// DataURI returns the image in a form an <img src> attribute accepts.
func (i Image) DataURI() string {
	if !i.Present() {
		return ""
	}
	return dataURIPrefix + string(i)
}
