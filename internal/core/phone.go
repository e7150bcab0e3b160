package core

// FormatPhone renders Brazilian phone numbers: 11 digits as (AA) BBBBB-CCCC,
// 10 digits as (AA) BBBB-CCCC. Any other input is returned unchanged.
func FormatPhone(s string) string {
	d := onlyDigits(s)
	switch len(d) {
	case 11:
		return "(" + d[0:2] + ") " + d[2:7] + "-" + d[7:11]
	case 10:
		return "(" + d[0:2] + ") " + d[2:6] + "-" + d[6:10]
	default:
		return s
	}
}

// ValidPhone accepts landline (10 digits) and mobile (11 digits) numbers with area code.
func ValidPhone(s string) bool {
	n := len(onlyDigits(s))
	return n == 10 || n == 11
}

// NormalizePhone keeps only the digits, the form stored in the database.
func NormalizePhone(s string) string {
	return onlyDigits(s)
}
