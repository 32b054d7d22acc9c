package metrics

import "strconv"

// Ordinal returns n with its English ordinal suffix: 1st, 2nd, 3rd, 4th...
// The 11-13 range always takes "th" regardless of the last digit.
func Ordinal(n int) string {
	suffix := "th"
	if rem := n % 100; rem < 11 || rem > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// TradeNumber maps a position in a reverse-chronological listing back to
// the trade's ordinal number, oldest = 1.
func TradeNumber(reverseIndex, total int) int {
	return total - reverseIndex
}
