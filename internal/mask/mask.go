// Package mask turns raw keystroke or paste text into canonical digit strings
// and renders them with thousands grouping ("1234567" -> "1.234.567").
package mask

import (
	"strconv"
	"strings"
)

// Separator groups thousands in displayed values.
const Separator = '.'

// MaxSupportedDigits is the longest digit buffer that still fits an int64.
const MaxSupportedDigits = 18

// Normalize keeps only the ASCII digits of raw, in order, truncated to maxDigits.
// Leading zeros are preserved; nothing is parsed or rounded.
func Normalize(raw string, maxDigits int) string {
	if maxDigits <= 0 {
		return ""
	}

	var b strings.Builder
	// ASCII digits never occur inside a multi-byte UTF-8 sequence, so a byte scan is safe.
	for i := 0; i < len(raw) && b.Len() < maxDigits; i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Format inserts Separator every three digits counting from the right.
// digits must already be canonical (see Normalize).
func Format(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}

	lead := n % 3
	if lead == 0 {
		lead = 3
	}

	var b strings.Builder
	b.Grow(n + (n-1)/3)
	b.WriteString(digits[:lead])
	for i := lead; i < n; i += 3 {
		b.WriteByte(Separator)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Unformat strips everything but digits from a displayed value.
func Unformat(display string) string {
	return Normalize(display, len(display))
}

// countDigits returns how many ASCII digits s contains.
func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

// State is the transient value of one masked field: the canonical digit
// buffer and the text shown to the user. Display is always Format(Digits).
type State struct {
	Digits  string `json:"digits"`
	Display string `json:"display"`
}

// NewState masks raw into a State capped at maxDigits.
func NewState(raw string, maxDigits int) State {
	digits := Normalize(raw, maxDigits)
	return State{Digits: digits, Display: Format(digits)}
}

// FromInt renders a stored integer as a State, e.g. when loading a record for editing.
// Negative values have no masked representation and yield an empty State.
func FromInt(v int64, maxDigits int) State {
	if v < 0 {
		return State{}
	}
	return NewState(strconv.FormatInt(v, 10), maxDigits)
}

// Empty reports whether nothing has been entered.
func (s State) Empty() bool {
	return s.Digits == ""
}

// Value converts the digit buffer lazily. ok is false when nothing was
// entered, so callers can tell "no input" apart from an entered zero.
func (s State) Value() (v int64, ok bool) {
	if s.Digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s.Digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
