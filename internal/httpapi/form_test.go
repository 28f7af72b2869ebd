package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrifit-backend/internal/fault"
)

func TestParseForm(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{"empty", "", map[string]any{}},
		{"flat", "a=1&b=two", map[string]any{"a": "1", "b": "two"}},
		{"plus and escapes", "q=brown+rice&note=50%25+off", map[string]any{"q": "brown rice", "note": "50% off"}},
		{"repeated key", "a=1&a=2&a=3", map[string]any{"a": []any{"1", "2", "3"}}},
		{"nested object", "meal[name]=soup&meal[kcal]=120", map[string]any{"meal": map[string]any{"name": "soup", "kcal": "120"}}},
		{"push syntax", "tags[]=x&tags[]=y", map[string]any{"tags": []any{"x", "y"}}},
		{"indexed", "a[1]=y&a[0]=x", map[string]any{"a": []any{"x", "y"}}},
		{"sparse index", "a[0]=x&a[5]=y", map[string]any{"a": []any{"x", "y"}}},
		{"index over limit", "a[21]=x", map[string]any{"a": map[string]any{"21": "x"}}},
		{"objects in array", "items[0][name]=egg&items[1][name]=ham", map[string]any{
			"items": []any{
				map[string]any{"name": "egg"},
				map[string]any{"name": "ham"},
			},
		}},
		{"deep", "a[b][c][d]=1", map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": "1"}}}}},
		{"no parent", "[a]=1", map[string]any{"[a]": "1"}},
		{"unclosed bracket", "a[b=1", map[string]any{"a[b": "1"}},
		{"no value", "flag&x=", map[string]any{"flag": "", "x": ""}},
		{"empty pairs skipped", "&&a=1&", map[string]any{"a": "1"}},
		{"empty key skipped", "=1&a=2", map[string]any{"a": "2"}},
		{"plain after index", "a[1]=p&a=z", map[string]any{"a": []any{"p", "z"}}},
		{"push after index", "a[3]=p&a[]=z", map[string]any{"a": []any{"p", "z"}}},
		{"push after sparse index", "a[0]=x&a[2]=y&a[]=z", map[string]any{"a": []any{"x", "y", "z"}}},
		{"nested push after index", "a[1][n]=p&a[][n]=z", map[string]any{"a": []any{
			map[string]any{"n": "p"},
			map[string]any{"n": "z"},
		}}},
		{"plain after named key", "a[b]=1&a=2", map[string]any{"a": map[string]any{"b": "1", "0": "2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForm(tt.in, 1000)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormDepthLimit(t *testing.T) {
	key := "a" + strings.Repeat("[x]", formMaxDepth+2)
	got, err := parseForm(key+"=v", 1000)
	require.NoError(t, err)

	node := got["a"]
	for i := 0; i < formMaxDepth; i++ {
		m, ok := node.(map[string]any)
		require.True(t, ok, "depth %d", i)
		node = m["x"]
	}
	last, ok := node.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", last["[x][x]"])
}

func TestParseFormParameterLimit(t *testing.T) {
	in := strings.TrimSuffix(strings.Repeat("a=1&", 11), "&")

	_, err := parseForm(in, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrTooManyParameters))
	assert.Equal(t, http.StatusRequestEntityTooLarge, fault.From(err).StatusCode())

	_, err = parseForm(in, 11)
	assert.NoError(t, err)
}

func TestParseFormBadEscape(t *testing.T) {
	_, err := parseForm("a=%G1", 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrMalformedBody))
	assert.Equal(t, http.StatusBadRequest, fault.From(err).StatusCode())
}

func TestSplitFormKey(t *testing.T) {
	assert.Equal(t, []string{"a"}, splitFormKey("a"))
	assert.Equal(t, []string{"a", "b", ""}, splitFormKey("a[b][]"))
	assert.Equal(t, []string{"a", "b", "tail"}, splitFormKey("a[b]tail"))
	assert.Equal(t, []string{"a", "b", "[c"}, splitFormKey("a[b][c"))
}
