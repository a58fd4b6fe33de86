package remote

import (
	"bytes"

	"github.com/vytor/starcards/internal/models"
)

// MergeTotals combines local and remote figures by taking the larger of each.
// The two sources overlap, so summing would double count.
func MergeTotals(local, remote models.Totals) models.Totals {
	return models.Totals{
		TimeEverMs:     max(local.TimeEverMs, remote.TimeEverMs),
		TimeWeekMs:     max(local.TimeWeekMs, remote.TimeWeekMs),
		CardsAttempted: max(local.CardsAttempted, remote.CardsAttempted),
	}
}

// UnwrapJSONP strips a callback wrapper such as cb({...}); from body. Plain
// JSON is returned unchanged.
func UnwrapJSONP(body []byte) []byte {
	b := bytes.TrimSpace(body)
	if len(b) == 0 || b[0] == '{' || b[0] == '[' {
		return b
	}
	open := bytes.IndexByte(b, '(')
	if open <= 0 || !isCallbackName(b[:open]) {
		return b
	}
	rest := bytes.TrimRight(b[open+1:], "; \t\r\n")
	if len(rest) == 0 || rest[len(rest)-1] != ')' {
		return b
	}
	return bytes.TrimSpace(rest[:len(rest)-1])
}

func isCallbackName(name []byte) bool {
	for _, r := range string(bytes.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '$' || r == '.':
		default:
			return false
		}
	}
	return true
}
