package domain

// GenerateSlots returns the start of every duration-long slot that fits in [start, end).
// A non-positive duration or an empty window yields no slots.
func GenerateSlots(start, end, duration int) []string {
	if duration <= 0 || start >= end {
		return []string{}
	}
	slots := make([]string, 0, (end-start)/duration)
	for t := start; t+duration <= end; t += duration {
		slots = append(slots, FromMinutes(t))
	}
	return slots
}

func GenerateSlotsBetween(start, end string, duration int) ([]string, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return nil, err
	}
	e, err := ToMinutes(end)
	if err != nil {
		return nil, err
	}
	return GenerateSlots(s, e, duration), nil
}
