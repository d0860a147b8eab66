package mask

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		max  int
		want string
	}{
		{"truncates to max", "12345678", 6, "123456"},
		{"strips separators", "1.234.5", 6, "12345"},
		{"keeps leading zeros", "007", 6, "007"},
		{"empty", "", 6, ""},
		{"letters only", "abc", 6, ""},
		{"mixed", "a1b2-c3 ", 6, "123"},
		{"non-ascii digits dropped", "١٢3", 6, "3"},
		{"zero max", "123", 0, ""},
		{"negative max", "123", -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw, tt.max))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		digits string
		want   string
	}{
		{"", ""},
		{"1", "1"},
		{"12", "12"},
		{"123", "123"},
		{"1234", "1.234"},
		{"123456", "123.456"},
		{"1234567", "1.234.567"},
		{"99999999", "99.999.999"},
		{"000", "000"},
		{"0001", "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.digits, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.digits))
		})
	}
}

func TestMaskScenario(t *testing.T) {
	s := NewState("12345678", 6)
	assert.Equal(t, "123456", s.Digits)
	assert.Equal(t, "123.456", s.Display)
}

func TestMaskIdempotent(t *testing.T) {
	inputs := []string{"", "0", "12", "1.2.3.4", "abc123def456", "999999999999", " 1 000 000 ", "..."}
	for _, in := range inputs {
		for _, max := range []int{1, 3, 6, 8} {
			once := Format(Normalize(in, max))
			twice := Format(Normalize(once, max))
			assert.Equal(t, once, twice, "input %q max %d", in, max)
		}
	}
}

func TestFormatShape(t *testing.T) {
	for n := 0; n <= 12; n++ {
		digits := strings.Repeat("7", n)
		out := Format(Normalize(digits, 12))

		require.False(t, strings.HasPrefix(out, "."), "leading separator in %q", out)
		require.False(t, strings.HasSuffix(out, "."), "trailing separator in %q", out)

		groups := strings.Split(out, ".")
		for i, g := range groups {
			if i == 0 {
				if n > 0 {
					assert.True(t, len(g) >= 1 && len(g) <= 3, "leftmost group %q", g)
				}
				continue
			}
			assert.Len(t, g, 3, "group %d of %q", i, out)
		}
		assert.Equal(t, digits, Unformat(out))
	}
}

func TestStateValue(t *testing.T) {
	v, ok := State{}.Value()
	assert.False(t, ok, "empty digits must be absent")
	assert.Zero(t, v)

	v, ok = NewState("0", 6).Value()
	assert.True(t, ok, "entered zero is present")
	assert.Zero(t, v)

	v, ok = NewState("1.250", 6).Value()
	assert.True(t, ok)
	assert.Equal(t, int64(1250), v)
}

func TestFromInt(t *testing.T) {
	assert.Equal(t, State{Digits: "25000", Display: "25.000"}, FromInt(25000, 8))
	assert.Equal(t, State{}, FromInt(-5, 8))
	assert.Equal(t, "123456", FromInt(12345678, 6).Digits)
}
