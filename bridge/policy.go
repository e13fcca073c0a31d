package bridge

import "fmt"

// Policy controls how many sessions may attach at once.
type Policy string

const (
	// Exclusive allows a single attached session.
	Exclusive Policy = "exclusive"
	// Broadcast allows many sessions, each receiving every frame.
	Broadcast Policy = "broadcast"
)

// ParsePolicy parses a policy name; empty selects Exclusive.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", Exclusive:
		return Exclusive, nil
	case Broadcast:
		return Broadcast, nil
	}
	return "", fmt.Errorf("unsupported session policy: %v", name)
}
