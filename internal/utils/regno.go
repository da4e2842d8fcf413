package utils

import (
	"fmt"
	"strings"
)

const regNoPrefix = "HST-REG-"

// RegNo renders a booking id as the registration number printed on the
// booking slip, e.g. 3 -> HST-REG-003.
func RegNo(id uint64) string {
	return fmt.Sprintf("%s%03d", regNoPrefix, id)
}

// ParseRegNo accepts either a registration number or a bare numeric id.
func ParseRegNo(s string) (uint64, bool) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), regNoPrefix)
	var id uint64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil || id == 0 {
		return 0, false
	}
	if fmt.Sprintf("%d", id) != strings.TrimLeft(s, "0") {
		return 0, false
	}
	return id, true
}
