package memotmpl

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	bulletRe = regexp.MustCompile(`^\s*(?:[-・*•]|\d+[.)、])\s*(.+)$`)
	budgetRe = regexp.MustCompile(`(?:予算|budget)\s*[:：]?\s*[¥￥]?\s*([\d,]+)`)
	dateRe   = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})|(\d{1,2})[/-](\d{1,2})`)
)

// extractListItems pulls bullet and numbered lines out of text.
func extractListItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}

// extractSection pulls bullet lines that follow a heading containing
// one of the labels, stopping at the next blank line or heading.
func extractSection(text string, labels ...string) []string {
	lines := strings.Split(text, "\n")
	var items []string
	in := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !in {
			for _, l := range labels {
				if strings.Contains(lower, strings.ToLower(l)) {
					in = true
					break
				}
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		} else {
			break
		}
	}
	return items
}

// extractBudget finds a 予算/budget amount in text. Commas are accepted.
func extractBudget(text string) *int64 {
	m := budgetRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// extractDate finds the first YYYY/MM/DD or MM/DD date in text. Short
// dates resolve against the current year.
func extractDate(text string) *time.Time {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	now := time.Now()
	var year, month, day int
	if m[1] != "" {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		year = now.Year()
		month, _ = strconv.Atoi(m[4])
		day, _ = strconv.Atoi(m[5])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	return &t
}
