package sheetsync

// Reserved ranges of a ledger spreadsheet.
const (
	RangeCategories = "Event Log!A3:C"
	RangeEvents     = "Event Log!E3:K"
	RangeMembers    = "Members!A4:L"
	RangeAttendance = "Members!M2:ZZ"
	RangeOutput     = "Output!A2:B"
)

// Command regions users author commands into.
const (
	RangeUpsertCategoryCmd  = "Event Log!N3:P5"
	RangeDeleteCategoryCmd  = "Event Log!N9:P10"
	RangeUpsertEventCmd     = "Event Log!N15:P20"
	RangeDeleteEventCmd     = "Event Log!N28:P28"
	RangeQuestionMapEventID = "Event Log!N33:P33"
	RangeQuestionMapRows    = "Event Log!M40:P"
)

// CommandValueColumn is column P within an N:P command region.
const CommandValueColumn = 2

// RangeSignIn is read from sign-in sheets. Row 0 holds the headers.
const RangeSignIn = "A1:ZZ"

const attendedMark = "X"
