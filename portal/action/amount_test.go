package action_test

import (
	"math/big"
	"testing"

	"github.com/zeebo/assert"

	"github.com/skalenetwork/portal-sub000/portal/action"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		decimals int32
		wei      string
		ok       bool
		msg      string
	}{
		{"", 18, "", false, ""},
		{"  ", 18, "", false, ""},
		{"0", 18, "", false, ""},
		{"0.0", 6, "", false, ""},
		{"1", 18, "1000000000000000000", true, ""},
		{"1.5", 6, "1500000", true, ""},
		{" 2.25 ", 2, "225", true, ""},
		{"0.0000001", 6, "", false, "Amount too small"},
		{"1.0000001", 6, "", false, "Incorrect amount"},
		{"1.500000", 2, "150", true, ""},
		{"-1", 18, "", false, "Incorrect amount"},
		{"1,5", 18, "", false, "Incorrect amount"},
		{"abc", 18, "", false, "Incorrect amount"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			wei, res := action.ParseAmount(tc.in, tc.decimals)
			assert.Equal(t, res.OK, tc.ok)
			assert.Equal(t, res.Message, tc.msg)
			if tc.ok {
				assert.Equal(t, wei.String(), tc.wei)
			} else {
				assert.True(t, wei == nil)
			}
		})
	}
}

func TestParseTokenID(t *testing.T) {
	id, res := action.ParseTokenID("42")
	assert.True(t, res.OK)
	assert.Equal(t, id.Int64(), int64(42))

	_, res = action.ParseTokenID("")
	assert.False(t, res.OK)
	assert.Equal(t, res.Message, "")

	_, res = action.ParseTokenID("0x2a")
	assert.Equal(t, res.Message, "Incorrect token id")

	_, res = action.ParseTokenID("-1")
	assert.Equal(t, res.Message, "Incorrect token id")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, action.FormatAmount(big.NewInt(1500000), 6), "1.5")
	assert.Equal(t, action.FormatAmount(nil, 18), "0")
	assert.Equal(t, action.FormatAmount(big.NewInt(1000000), 6), "1")
}
