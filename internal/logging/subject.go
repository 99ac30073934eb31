package logging

import "strings"

// FormatSubject builds the entry/phase subject string used in console output.
func FormatSubject(entryID, phase string) string {
	entryID = strings.TrimSpace(entryID)
	phase = strings.TrimSpace(phase)
	switch {
	case entryID != "" && phase != "":
		return entryID + " (" + phase + ")"
	case entryID != "":
		return entryID
	default:
		return phase
	}
}
