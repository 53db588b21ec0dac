package ocr

import (
	"regexp"
	"strings"
)

const utrLength = 16

var (
	labelledToken = regexp.MustCompile(`(?i)\b(?:UPI[\s.]+Transaction[\s.]+ID|Transaction[\s.]+ID|Txn[\s.]+ID|UPI[\s.]+Ref[\s.]+No|UPI[\s.]+Ref|Reference[\s.]+No|Ref[\s.]+No|UTR[\s.]+No|UTR)\b[\s:#\-.]*([A-Za-z0-9]+)`)
	anyToken      = regexp.MustCompile(`[A-Za-z0-9]+`)
)

// ParseUTR finds the transaction reference in recognised text. A 16 character
// token right after a known label wins over the first 16 character token found
// anywhere. Tokens without a digit are ignored. The result is upper-cased.
func ParseUTR(text string) (string, bool) {
	for _, m := range labelledToken.FindAllStringSubmatch(text, -1) {
		if isCandidate(m[1]) {
			return strings.ToUpper(m[1]), true
		}
	}
	for _, tok := range anyToken.FindAllString(text, -1) {
		if isCandidate(tok) {
			return strings.ToUpper(tok), true
		}
	}
	return "", false
}

func isCandidate(tok string) bool {
	return len(tok) == utrLength && strings.ContainsAny(tok, "0123456789")
}

func countLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
