package core

import "strings"

// ValidCPF reports whether s is a valid Brazilian taxpayer id. Punctuation is
// ignored; sequences of a single repeated digit are rejected.
func ValidCPF(s string) bool {
	d := onlyDigits(s)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == len(d) {
		return false
	}
	return cpfCheckDigit(d[:9]) == d[9]-'0' && cpfCheckDigit(d[:10]) == d[10]-'0'
}

// cpfCheckDigit weights the digits from len+1 down to 2.
func cpfCheckDigit(digits string) byte {
	weight := len(digits) + 1
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return byte(r)
}

// FormatCPF renders an 11-digit CPF as 000.000.000-00. Other input is returned as is.
func FormatCPF(s string) string {
	d := onlyDigits(s)
	if len(d) != 11 {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
