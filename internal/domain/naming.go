package domain

import (
	"strings"
	"unicode"
)

// CamelCase приводит идентификатор к lowerCamelCase:
// "fetch-orders_v2" → "fetchOrdersV2", "LoadUser" → "loadUser".
//
// Используется как имя обработчика стадии и в идентификаторах формул.
func CamelCase(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, w := range words {
		w = strings.ToLower(w)
		if i == 0 {
			b.WriteString(w)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// splitWords разбивает строку на слова по не-буквенно-цифровым
// символам и по границе "строчная → заглавная".
func splitWords(s string) []string {
	var words []string
	var cur []rune
	var prev rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()

	return words
}
