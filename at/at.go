package at

const (
	// Terminal Control
	CR   = "\r"
	CRLF = "\r\n"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// NoResponse is relayed to local clients when the modem returned nothing.
	NoResponse = "No response received from server"

	// Response markers of the handled command families
	MarkerSignal   = "^HCSQ:"
	MarkerCarrier  = "^HFREQINFO:"
	MarkerLock     = "^NRFREQLOCK:"
	MarkerCellScan = "^CELLSCAN: "
	MarkerChipTemp = "^CHIPTEMP:"

	// URCs (Unsolicited Result Codes)
	UrcCall = "RING"
)

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK, ERROR
	TypeURC                       // Asynchronous notifications
	TypeData                      // Intermediate command output (^HCSQ: ...)
)
