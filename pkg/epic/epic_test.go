package epic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ABC1234567", true},
		{"XYZ0000001", true},
		{"AB1234567", false},   // prefix too short
		{"ABCD123456", false},  // prefix too long
		{"abc1234567", false},  // lowercase
		{"ABC123456", false},   // suffix too short
		{"ABC12345678", false}, // suffix too long
		{"", false},
		{"ABC 1234567", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Validate(tt.in), "Validate(%q)", tt.in)
	}
}

func TestCorrectRepairsCommonConfusions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"digit one as I in prefix", "1BC1234567", "IBC1234567"},
		{"zero as O in prefix", "0BC1234567", "OBC1234567"},
		{"five as S in prefix", "5BC1234567", "SBC1234567"},
		{"eight as B in prefix", "8YZ1234567", "BYZ1234567"},
		{"letter O as zero in suffix", "ABCO234567", "ABC0234567"},
		{"letter I as one in suffix", "ABCI234567", "ABC1234567"},
		{"letter S as five in suffix", "ABCS234567", "ABC5234567"},
		{"letter Z as two in suffix", "ABCZ234567", "ABC2234567"},
		{"letter L as one in suffix", "ABCL234567", "ABC1234567"},
		{"both directions at once", "1BCO23456Z", "IBC0234562"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correct(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, Validate(got))
		})
	}
}

func TestCorrectNormalizes(t *testing.T) {
	assert.Equal(t, "ABC1234567", Correct("abc1234567"))
	assert.Equal(t, "ABC1234567", Correct("  ABC 1234567\n"))
	assert.Equal(t, "ABC1234567", Correct("ABC1234567___"))
	assert.Equal(t, "ABC1234567", Correct("EPIC: ABC1234567"))
}

func TestCorrectIdempotent(t *testing.T) {
	inputs := []string{
		"1BCO23456Z",
		"abc 1234567",
		"NO ID",
		"garbage",
		"",
		"ABC1234567",
	}
	for _, in := range inputs {
		once := Correct(in)
		assert.Equal(t, once, Correct(once), "Correct not idempotent for %q", in)
	}
}

func TestCorrectLeavesUnrepairableInput(t *testing.T) {
	// No ten character candidate: the normalized text passes through.
	assert.Equal(t, "NOID", Correct("NO ID"))
	assert.Equal(t, "XYZ", Correct("xyz"))
	assert.Equal(t, "", Correct("   "))
}

func TestExtract(t *testing.T) {
	assert.Equal(t, "ABC1234567", Extract("Voter ABC1234567 listed"))
	assert.Equal(t, "ABC1234567", Extract("ABC 1234567"))
	assert.Equal(t, "", Extract("no id here"))
}

func TestIsSentinel(t *testing.T) {
	for _, s := range []string{"NO ID", "no id", "NOID", "N/A", "na", " NONE ", "NOT FOUND"} {
		assert.True(t, IsSentinel(s), "IsSentinel(%q)", s)
	}
	for _, s := range []string{"", "ABC1234567", "UNKNOWN"} {
		assert.False(t, IsSentinel(s), "IsSentinel(%q)", s)
	}
}
