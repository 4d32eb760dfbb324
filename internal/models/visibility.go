package models

import (
	"fmt"
	"strings"
)

// Visibility is the audience of a published status.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// Visibilities lists every visibility from least to most restrictive.
var Visibilities = []Visibility{
	VisibilityPublic,
	VisibilityUnlisted,
	VisibilityPrivate,
	VisibilityDirect,
}

// Rank is the position of v in Visibilities, or -1 when v is unknown.
func (v Visibility) Rank() int {
	for i, candidate := range Visibilities {
		if candidate == v {
			return i
		}
	}
	return -1
}

func (v Visibility) Valid() bool {
	return v.Rank() >= 0
}

// AtLeast reports whether v is at least as restrictive as floor.
func (v Visibility) AtLeast(floor Visibility) bool {
	return v.Rank() >= floor.Rank()
}

// AllowedFrom returns the visibilities at or above floor. An unknown floor
// allows the full range.
func AllowedFrom(floor Visibility) []Visibility {
	rank := floor.Rank()
	if rank < 0 {
		rank = 0
	}
	allowed := make([]Visibility, len(Visibilities)-rank)
	copy(allowed, Visibilities[rank:])
	return allowed
}

// ParseVisibility parses a visibility name case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown visibility %q (expected public, unlisted, private or direct)", s)
	}
	return v, nil
}
