package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/rangetable"
	"golang.org/x/text/width"

	"github.com/cif-address/internal/numeral"
)

// Legacy 3 or 5 digit postal prefix. \p{Nd} also covers full-width digits,
// which are still present at this point.
var reLegacyPostal = regexp.MustCompile(`^\p{Nd}{3}(?:\p{Nd}{2})?[\s\p{Zs}]*`)

var reNeighborhood = regexp.MustCompile(`\p{Nd}{1,2}鄰`)

const numeralClass = `[零一二三四五六七八九十百]+`

// Markers whose preceding numeral is converted, in this order.
var markerRules = []struct {
	marker string
	re     *regexp.Regexp
}{
	{"段", regexp.MustCompile(`(` + numeralClass + `)段`)},
	{"樓", regexp.MustCompile(`(` + numeralClass + `)樓`)},
	{"號", regexp.MustCompile(`(` + numeralClass + `)號`)},
}

// Full-width characters narrowed by toHalfWidth. Other full-width text
// (CJK punctuation such as 、) is left alone.
const fullWidthChars = "０１２３４５６７８９" +
	"ＡＢＣＤＥＦＧＨＩＪＫＬＭＮＯＰＱＲＳＴＵＶＷＸＹＺ" +
	"ａｂｃｄｅｆｇｈｉｊｋｌｍｎｏｐｑｒｓｔｕｖｗｘｙｚ" +
	"－～（）　，．"

var fullWidthTable = rangetable.New([]rune(fullWidthChars)...)

func trimAndUnify(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "台", "臺")
}

func stripPostalPrefix(s string) string {
	return strings.TrimSpace(reLegacyPostal.ReplaceAllString(s, ""))
}

func narrowListed(r rune) rune {
	if !unicode.Is(fullWidthTable, r) {
		return r
	}
	if r == '　' {
		return ' '
	}
	if n := width.LookupRune(r).Narrow(); n != 0 {
		return n
	}
	return r
}

func toHalfWidth(s string) string {
	out, _, err := transform.String(runes.Map(narrowListed), s)
	if err != nil {
		return s
	}
	return out
}

func unifyFloorMarker(s string) string {
	return strings.NewReplacer("F", "樓", "f", "樓").Replace(s)
}

func unifySeparators(s string) string {
	return strings.NewReplacer("-", "之", "~", "之").Replace(s)
}

func dropNeighborhood(s string) string {
	return reNeighborhood.ReplaceAllString(s, "")
}

func convertNumerals(s string) string {
	for _, rule := range markerRules {
		marker := rule.marker
		s = rule.re.ReplaceAllStringFunc(s, func(m string) string {
			return numeral.ParseChinese(strings.TrimSuffix(m, marker)) + marker
		})
	}
	return convertAfterContinuation(s)
}

// convertAfterContinuation converts the numeral run following each 之 unless
// the run ends in 樓 or 號; those belong to the floor or number instead.
func convertAfterContinuation(s string) string {
	if !strings.ContainsRune(s, '之') {
		return s
	}
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); i++ {
		b.WriteRune(rs[i])
		if rs[i] != '之' {
			continue
		}
		j := i + 1
		for j < len(rs) && numeral.IsNumeralRune(rs[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		if j < len(rs) && (rs[j] == '樓' || rs[j] == '號') {
			continue
		}
		b.WriteString(numeral.ParseChinese(string(rs[i+1 : j])))
		i = j - 1
	}
	return b.String()
}
