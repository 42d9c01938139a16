// Package price turns free-form price text ("From €1.234,50", "$19 – $29",
// "99,99 EUR") into a single normalized display price.
package price

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxPrice is the exclusive upper bound for a plausible retail price.
const maxPrice = 10_000_000

// defaultSymbol is used when only a bare number was found.
const defaultSymbol = "$"

// noisePhrases are stripped before matching (case-insensitive).
var noisePhrases = regexp.MustCompile(`(?i)\b(from|starting at|starts at|as low as|only|now|price|sale price|regular price|our price)\b:?`)

// rangeSeparator splits "10 - 20", "10–20", "10 to 20".
var rangeSeparator = regexp.MustCompile(`\s*(?:–|—|\s-\s|\bto\b)\s*`)

// amount matches grouped ("1.234,56", "1 234.56") or plain ("1234.5") numbers.
const amount = `(\d{1,3}(?:[ '.,\x{00a0}\x{202f}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`

// symbols are listed longest first so "US$" wins over "$".
const symbols = `(US\$|CA\$|C\$|A\$|AU\$|NZ\$|HK\$|S\$|R\$|\$|€|£|¥|₹|₩|₽|₺|₪|₫|฿|₱|zł|Kč)`

type pattern struct {
	re    *regexp.Regexp
	score int
	// symbolFirst is true when the currency precedes the number in the match.
	symbolFirst bool
	isoCode     bool
}

// patterns is the priority-ordered currency table. Symbol forms score above
// ISO-code forms, and code-before-number scores above reversed-order codes.
var patterns = []pattern{
	{re: regexp.MustCompile(symbols + `\s?` + amount), score: 100, symbolFirst: true},
	{re: regexp.MustCompile(amount + `\s?` + symbols), score: 90},
	{re: regexp.MustCompile(`\b([A-Z]{3})\s?` + amount), score: 80, symbolFirst: true, isoCode: true},
	{re: regexp.MustCompile(amount + `\s?([A-Z]{3})\b`), score: 70, isoCode: true},
}

var bareNumber = regexp.MustCompile(amount)

// unknownPrefix captures a short currency-looking token ("Rs.", "kr", "₨")
// directly before a bare number, so it is kept instead of relabelled.
var unknownPrefix = regexp.MustCompile(`(?:^|[^\p{L}])(\p{L}{1,3}\.?|\p{Sc})\s?` + amount)

// notCurrency are short words that precede numbers in price copy.
var notCurrency = map[string]bool{"was": true, "for": true, "per": true, "off": true, "buy": true, "and": true, "or": true, "of": true, "at": true, "ea": true, "x": true}

// dotThousands is a number whose only separator is a dot followed by exactly
// three digits ("1.234"): a thousands group in dot-grouping locales.
var dotThousands = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// dotGrouping are display symbols of currencies written "1.234,56".
var dotGrouping = map[string]bool{"€": true, "zł ": true, "Kč ": true, "R$": true, "₺": true, "₫": true}

// displaySymbols maps ISO codes and symbol spellings to the prefix used in
// the normalized price string.
var displaySymbols = map[string]string{
	"USD": "$", "US$": "$", "$": "$",
	"EUR": "€", "€": "€",
	"GBP": "£", "£": "£",
	"JPY": "¥", "CNY": "¥", "¥": "¥",
	"INR": "₹", "₹": "₹",
	"KRW": "₩", "₩": "₩",
	"RUB": "₽", "₽": "₽",
	"TRY": "₺", "₺": "₺",
	"ILS": "₪", "₪": "₪",
	"VND": "₫", "₫": "₫",
	"THB": "฿", "฿": "฿",
	"PHP": "₱", "₱": "₱",
	"CAD": "CA$", "CA$": "CA$", "C$": "CA$",
	"AUD": "A$", "A$": "A$", "AU$": "A$",
	"NZD": "NZ$", "NZ$": "NZ$",
	"HKD": "HK$", "HK$": "HK$",
	"SGD": "S$", "S$": "S$",
	"BRL": "R$", "R$": "R$",
	"PLN": "zł ", "zł": "zł ",
	"CZK": "Kč ", "Kč": "Kč ",
}

// zeroDecimal currencies are displayed without fraction digits.
var zeroDecimal = map[string]bool{"¥": true, "₩": true, "₫": true}

var printer = message.NewPrinter(language.English)

// CleanAndExtract parses raw and returns the normalized display price, e.g.
// "€1,234.50". The boolean is false when no positive amount under 10,000,000
// could be parsed; callers store models.PriceUnknown in that case.
func CleanAndExtract(raw string) (string, bool) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\u00a0", " "))
	if text == "" {
		return "", false
	}
	text = noisePhrases.ReplaceAllString(text, " ")
	text = firstOfRange(text)
	text = strings.TrimSpace(text)

	// patterns are sorted by descending score, so the first usable match wins.
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cur, num := m[2], m[1]
		if p.symbolFirst {
			cur, num = m[1], m[2]
		}
		sym, ok := symbolFor(cur, p.isoCode)
		if !ok {
			continue
		}
		if dotGrouping[sym] && dotThousands.MatchString(num) {
			num = strings.ReplaceAll(num, ".", "")
		}
		v, ok := ParseAmount(num)
		if !ok {
			continue
		}
		return Format(sym, v), true
	}

	if m := unknownPrefix.FindStringSubmatch(text); m != nil && !notCurrency[strings.ToLower(strings.TrimSuffix(m[1], "."))] {
		if v, ok := ParseAmount(m[2]); ok {
			return Format(m[1]+" ", v), true
		}
	}
	if m := bareNumber.FindString(text); m != "" {
		if v, ok := ParseAmount(m); ok {
			return Format(defaultSymbol, v), true
		}
	}
	return "", false
}

// ParseAmount parses a number written with either "." or "," as the decimal
// separator. A comma followed by exactly two trailing digits is a decimal
// comma; otherwise commas are thousands separators. When both separators
// appear, the rightmost one is the decimal separator.
func ParseAmount(s string) (float64, bool) {
	s = strings.NewReplacer(" ", "", "'", "", "\u00a0", "", "\u202f", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v <= 0 || v >= maxPrice {
		return 0, false
	}
	return v, true
}

// Format renders v with English digit grouping after the currency symbol.
func Format(symbol string, v float64) string {
	if zeroDecimal[symbol] {
		return symbol + printer.Sprintf("%.0f", math.Round(v))
	}
	return symbol + printer.Sprintf("%.2f", v)
}

// firstOfRange keeps only the first value of "a – b" style ranges.
func firstOfRange(s string) string {
	loc := rangeSeparator.FindStringIndex(s)
	if loc == nil {
		return s
	}
	left, right := s[:loc[0]], s[loc[1]:]
	if strings.ContainsAny(left, "0123456789") && strings.ContainsAny(right, "0123456789") {
		return left
	}
	return s
}

func symbolFor(cur string, isoCode bool) (string, bool) {
	if isoCode {
		unit, err := currency.ParseISO(cur)
		if err != nil {
			return "", false
		}
		if sym, ok := displaySymbols[unit.String()]; ok {
			return sym, true
		}
		return unit.String() + " ", true
	}
	sym, ok := displaySymbols[cur]
	return sym, ok
}
