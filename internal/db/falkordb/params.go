package falkordb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// withParams prepends a "CYPHER name=value ..." header. Names are emitted in
// sorted order so the final query text is deterministic.
func withParams(cypher string, params map[string]any) (string, error) {
	if len(params) == 0 {
		return cypher, nil
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, name := range names {
		lit, err := literal(params[name])
		if err != nil {
			return "", fmt.Errorf("param %s: %w", name, err)
		}
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(lit)
	}
	b.WriteByte(' ')
	b.WriteString(cypher)
	return b.String(), nil
}

func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = quote(s)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			lit, err := literal(e)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	default:
		return "", fmt.Errorf("unsupported parameter type %T", v)
	}
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}
