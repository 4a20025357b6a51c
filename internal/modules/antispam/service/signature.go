package service

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	"signal_trader/internal/helper"
)

var (
	// 15m, 1h, 4H, 1D, 30 min, tf=5
	reTimeframe = regexp.MustCompile(`(?i)(?:\btf\s*[=:]\s*(\d+[a-z]*)|\b(\d+\s*(?:min|m|h|hr|d|w))\b)`)
	reNumber    = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)*`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// Timeframe: грубый токен таймфрейма из текста, "" если не нашли.
func Timeframe(content string) string {
	m := reTimeframe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	tok := m[1]
	if tok == "" {
		tok = m[2]
	}
	return helper.NormTF(strings.ReplaceAll(tok, " ", ""))
}

// Signature: таймфрейм + текст, где все числа свёрнуты в #.
// Сообщения, которые отличаются только ценами и индикаторами, дают одну сигнатуру.
func Signature(content string) string {
	folded := reNumber.ReplaceAllString(strings.ToLower(content), "#")
	folded = strings.TrimSpace(reSpaces.ReplaceAllString(folded, " "))
	return Timeframe(content) + "|" + folded
}

func hashOf(parts ...string) string {
	h := sha1.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BucketKey: (destination, symbol, route, signature).
func BucketKey(m Message) string {
	return hashOf(m.Destination, helper.NormalizeSymbol(m.Symbol), strings.ToLower(m.Route), Signature(m.Content))
}

func contentHash(content string) string {
	return hashOf(content)
}
