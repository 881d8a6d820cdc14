// Package numeral converts between Chinese positional numerals and arabic
// integers for the small numbers found in addresses (segments, floors,
// house numbers). Parsing understands 零-九 with the units 十 and 百, so it
// covers 0-999. Formatting only renders 0-99.
package numeral

import (
	"strconv"
	"strings"
)

var digits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var units = map[rune]int{
	'十': 10,
	'百': 100,
}

var digitRunes = []rune("零一二三四五六七八九")

// Result is the outcome of Parse. When Converted is false, Text holds the
// original token untouched and the caller should keep it as is.
type Result struct {
	Text      string
	Converted bool
}

// IsNumeralRune reports whether r is a Chinese digit or one of the units 十/百.
func IsNumeralRune(r rune) bool {
	if _, ok := digits[r]; ok {
		return true
	}
	_, ok := units[r]
	return ok
}

// ParseChinese is Parse without the conversion flag.
func ParseChinese(text string) string {
	return Parse(text).Text
}

// Parse converts a Chinese numeral token such as "二十一" to "21".
// Tokens that are already arabic come back as their decimal value.
// Anything it cannot read is returned unchanged with Converted=false.
func Parse(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}
	}
	if n, err := strconv.Atoi(text); err == nil {
		return converted(n)
	}

	rs := []rune(text)

	// 十 and 十X are read directly; only the second rune is consulted.
	if rs[0] == '十' {
		if len(rs) == 1 {
			return converted(10)
		}
		if d, ok := digits[rs[1]]; ok {
			return converted(10 + d)
		}
		return passThrough(text)
	}

	total, current, pending := 0, 0, 0
	for _, r := range rs {
		if d, ok := digits[r]; ok {
			current, pending = d, d
			continue
		}
		u, ok := units[r]
		if !ok {
			return passThrough(text)
		}
		multiplier := 0
		switch {
		case current > 0:
			multiplier = current
		case pending == 0 && total == 0:
			// bare leading unit, e.g. 百 alone
			multiplier = 1
		}
		total += multiplier * u
		current, pending = 0, 0
	}
	total += current

	if total == 0 && text != "零" {
		if len(rs) == 1 {
			if d, ok := digits[rs[0]]; ok {
				return converted(d)
			}
		}
		return passThrough(text)
	}
	return converted(total)
}

// Format renders a decimal string in Chinese numerals. Only 0-99 is
// supported; other input, including non-numbers, is returned unchanged.
func Format(numStr string) string {
	n, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil || n < 0 || n > 99 {
		return numStr
	}
	return FormatInt(n)
}

// FormatInt renders n (0-99) as 五, 十, 十二, 二十, 二十一. Out of range values
// fall back to their arabic form.
func FormatInt(n int) string {
	switch {
	case n < 0 || n > 99:
		return strconv.Itoa(n)
	case n < 10:
		return string(digitRunes[n])
	case n == 10:
		return "十"
	case n < 20:
		return "十" + string(digitRunes[n%10])
	}
	s := string(digitRunes[n/10]) + "十"
	if n%10 != 0 {
		s += string(digitRunes[n%10])
	}
	return s
}

func converted(n int) Result {
	return Result{Text: strconv.Itoa(n), Converted: true}
}

func passThrough(text string) Result {
	return Result{Text: text}
}
