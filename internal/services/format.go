package services

import (
	"strconv"
	"strings"
	"time"
)

var weekdayKanji = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// yen renders an amount as "¥1,234".
func yen(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("¥")
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// formatDay renders "MM/DD(曜)".
func formatDay(t time.Time) string {
	return t.Format("01/02") + "(" + weekdayKanji[int(t.Weekday())] + ")"
}

// formatDayTime renders "MM/DD(曜) HH:MM", or "MM/DD(曜) 終日" for
// all-day entries.
func formatDayTime(t time.Time, allDay bool) string {
	if allDay {
		return formatDay(t) + " 終日"
	}
	return formatDay(t) + " " + t.Format("15:04")
}

// formatFullDayTime renders "YYYY/MM/DD(曜) HH:MM" or the 終日 variant.
func formatFullDayTime(t time.Time, allDay bool) string {
	date := t.Format("2006/01/02") + "(" + weekdayKanji[int(t.Weekday())] + ")"
	if allDay {
		return date + " 終日"
	}
	return date + " " + t.Format("15:04")
}
