package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowString(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "base_link", want: "base_link"},
		{in: "imu/data", want: "imu/data"},
		{in: "a,b", want: `"a,b"`},
		{in: "[x]", want: `"[x]"`},
		{in: "true", want: `"true"`},
		{in: "False", want: `"False"`},
		{in: "yes", want: `"yes"`},
		{in: "off", want: `"off"`},
		{in: "42", want: `"42"`},
		{in: "0.01", want: `"0.01"`},
		{in: "null", want: `"null"`},
		{in: "~", want: `"~"`},
		{in: "", want: `""`},
		{in: " padded", want: `" padded"`},
		{in: "key: value", want: `"key: value"`},
		{in: "- item", want: `"- item"`},
		{in: `say "hi"`, want: `"say \"hi\""`},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, FlowString(tc.in))
		})
	}
}

func TestParse_QuotedListItemsStayStrings(t *testing.T) {
	table, err := Parse([]byte(`frames: ["a,b", "true", 'base_link', true, 3]`), "")
	require.NoError(t, err)
	assert.Equal(t, `["a,b", "true", base_link, true, 3]`, table["frames"])
}
