package decode

import (
	"strings"

	"i4.energy/across/atbridge/at"
)

const familyLock = "lock status"

// lockFinal is the framing AT^NRFREQLOCK? puts before its OK: the last
// record line is followed by an empty line.
const lockFinal = at.CRLF + at.CRLF + at.OK

// minLockLines is the number of lines a report with a locked cell has.
const minLockLines = 4

// LockStatus is the decoded ^NRFREQLOCK report.
type LockStatus struct {
	Locked bool
	// Cell is the locked cell descriptor line, e.g. "78","627264","1","579"
	Cell string
}

func (s LockStatus) String() string {
	if !s.Locked {
		return "none"
	}
	return s.Cell
}

// Lock decodes the response to AT^NRFREQLOCK?.
func Lock(raw string) (LockStatus, error) {
	body, ok := payload(raw, at.MarkerLock)
	if !ok {
		return LockStatus{}, invalid(familyLock, "missing "+at.MarkerLock, nil)
	}

	lines := strings.Split(stripFinal(body, lockFinal), "\n")
	if len(lines) < minLockLines {
		return LockStatus{}, nil
	}
	return LockStatus{Locked: true, Cell: strings.TrimRight(lines[2], "\r")}, nil
}
