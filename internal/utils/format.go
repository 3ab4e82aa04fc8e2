package utils

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatMoney renders a balance with thousands separators and the currency
// suffix used in notification messages, e.g. 1234567.89 -> "1,234,567đ"
func FormatMoney(v float64) string {
	return humanize.CommafWithDigits(v, 0) + "đ"
}

// FormatTimestamp renders a notification timestamp as HH:MM DD/MM/YYYY
func FormatTimestamp(t time.Time) string {
	return t.Format("15:04 02/01/2006")
}
