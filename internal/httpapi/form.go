package httpapi

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"nutrifit-backend/internal/fault"
)

const (
	// formMaxDepth bounds bracket nesting; deeper segments stay one literal key.
	formMaxDepth = 32
	// formArrayLimit is the largest index that still builds an array.
	formArrayLimit = 20
)

// parseForm decodes an urlencoded body with bracket nesting:
//
//	a=1&a=2        {"a": ["1", "2"]}
//	a[b]=1         {"a": {"b": "1"}}
//	a[]=1&a[]=2    {"a": ["1", "2"]}
//	a[0]=x&a[1]=y  {"a": ["x", "y"]}
//
// Pairs keep their order. More than parameterLimit pairs is a 413.
func parseForm(s string, parameterLimit int) (map[string]any, error) {
	out := map[string]any{}
	if s == "" {
		return out, nil
	}

	pairs := strings.Split(s, "&")
	if parameterLimit > 0 {
		n := 0
		for _, p := range pairs {
			if p != "" {
				n++
			}
		}
		if n > parameterLimit {
			return nil, fault.Payload(http.StatusRequestEntityTooLarge, fault.ErrTooManyParameters, "too many parameters")
		}
	}

	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fault.Payload(http.StatusBadRequest, fault.ErrMalformedBody, "invalid form key: "+err.Error())
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fault.Payload(http.StatusBadRequest, fault.ErrMalformedBody, "invalid form value: "+err.Error())
		}
		if key == "" {
			continue
		}
		insertForm(out, splitFormKey(key), val)
	}

	for k, v := range out {
		out[k] = compactForm(v)
	}
	return out, nil
}

// splitFormKey turns "a[b][]" into ["a", "b", ""]. Keys without a parent
// or with an unclosed bracket are literal.
func splitFormKey(key string) []string {
	i := strings.IndexByte(key, '[')
	if i <= 0 {
		return []string{key}
	}
	segs := []string{key[:i]}
	rest := key[i:]
	for depth := 0; rest != ""; depth++ {
		if depth == formMaxDepth || rest[0] != '[' {
			segs = append(segs, rest)
			break
		}
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			if len(segs) == 1 {
				return []string{key}
			}
			segs = append(segs, rest)
			break
		}
		segs = append(segs, rest[1:j])
		rest = rest[j+1:]
	}
	return segs
}

func insertForm(node map[string]any, segs []string, val string) {
	key := segs[0]
	switch {
	case len(segs) == 1:
		node[key] = combineForm(node[key], val)
	case len(segs) == 2 && segs[1] == "":
		node[key] = appendForm(node[key], val)
	default:
		child := formChild(node, key)
		next := segs[1:]
		if next[0] == "" {
			next = append([]string{nextFormIndex(child)}, next[1:]...)
		}
		insertForm(child, next, val)
	}
}

// formChild returns node[key] as a map, converting an array or scalar that
// is already there into index-keyed entries.
func formChild(node map[string]any, key string) map[string]any {
	switch cur := node[key].(type) {
	case map[string]any:
		return cur
	case []any:
		m := make(map[string]any, len(cur))
		for i, v := range cur {
			m[strconv.Itoa(i)] = v
		}
		node[key] = m
		return m
	case nil:
		m := map[string]any{}
		node[key] = m
		return m
	default:
		m := map[string]any{"0": cur}
		node[key] = m
		return m
	}
}

func combineForm(cur any, val string) any {
	switch c := cur.(type) {
	case nil:
		return val
	case []any:
		return append(c, val)
	case map[string]any:
		c[nextFormIndex(c)] = val
		return c
	default:
		return []any{c, val}
	}
}

func appendForm(cur any, val string) any {
	switch c := cur.(type) {
	case nil:
		return []any{val}
	case []any:
		return append(c, val)
	case map[string]any:
		c[nextFormIndex(c)] = val
		return c
	default:
		return []any{c, val}
	}
}

// nextFormIndex returns the key one past the highest index already in m,
// so appending never replaces an earlier value.
func nextFormIndex(m map[string]any) string {
	next := 0
	for k := range m {
		if n, err := strconv.Atoi(k); err == nil && n >= next {
			next = n + 1
		}
	}
	return strconv.Itoa(next)
}

// compactForm turns maps keyed only by small indices into arrays ordered by
// index, dropping holes.
func compactForm(v any) any {
	switch x := v.(type) {
	case []any:
		for i := range x {
			x[i] = compactForm(x[i])
		}
		return x
	case map[string]any:
		idx := make([]int, 0, len(x))
		for k, child := range x {
			x[k] = compactForm(child)
			n, err := strconv.Atoi(k)
			if err == nil && n >= 0 && n <= formArrayLimit && strconv.Itoa(n) == k {
				idx = append(idx, n)
			}
		}
		if len(idx) == 0 || len(idx) != len(x) {
			return x
		}
		sort.Ints(idx)
		arr := make([]any, 0, len(idx))
		for _, n := range idx {
			arr = append(arr, x[strconv.Itoa(n)])
		}
		return arr
	default:
		return v
	}
}
