package domain

import (
	"fmt"
	"strings"
)

// Slot is one labelled time-block on the portal. ID is the value the portal
// expects in its slot query.
type Slot struct {
	Label string
	ID    string
}

// DefaultSlots is the slot set the ARMS portal exposes for enrollment.
var DefaultSlots = []Slot{
	{Label: "O", ID: "15"},
	{Label: "P", ID: "16"},
	{Label: "Q", ID: "17"},
	{Label: "R", ID: "18"},
	{Label: "S", ID: "19"},
	{Label: "T", ID: "20"},
}

// ParseSlots parses "O=15,P=16" into a slot list, keeping order.
func ParseSlots(raw string) ([]Slot, error) {
	var slots []Slot
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, id, ok := strings.Cut(part, "=")
		label = strings.ToUpper(strings.TrimSpace(label))
		id = strings.TrimSpace(id)
		if !ok || label == "" || id == "" {
			return nil, fmt.Errorf("invalid slot %q, want LABEL=ID", part)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("duplicate slot label %q", label)
		}
		seen[label] = struct{}{}
		slots = append(slots, Slot{Label: label, ID: id})
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots defined")
	}
	return slots, nil
}
