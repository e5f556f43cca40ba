package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// ID returns a fixed, readable id: ID(7) is
// 00000000-0000-0000-0000-000000000007.
func ID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

// SourceID and TargetID return ids from disjoint ranges so test output shows
// which environment an id came from.
func SourceID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("5a000000-0000-0000-0000-%012d", n))
}

func TargetID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("7a000000-0000-0000-0000-%012d", n))
}
