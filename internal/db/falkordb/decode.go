package falkordb

import (
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vntravel/internal/db"
)

// Compact-mode value type tags.
const (
	valueNull    = 1
	valueString  = 2
	valueInteger = 3
	valueBoolean = 4
	valueDouble  = 5
	valueArray   = 6
	valueEdge    = 7
	valueNode    = 8
	valuePath    = 9
	valueMap     = 10
	valuePoint   = 11
)

// Result is a decoded query response.
type Result struct {
	Columns []string
	Rows    [][]any
	Stats   []string
}

// Column returns the index of the named column or -1.
func (r *Result) Column(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func decodeResult(raw []rueidis.RedisMessage) (*Result, error) {
	res := &Result{}
	switch len(raw) {
	case 1:
		// Statistics only.
		res.Stats = decodeStats(raw[0])
		return res, nil
	case 3:
	default:
		return nil, fmt.Errorf("unexpected response length %d", len(raw))
	}

	header, err := raw[0].ToArray()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	res.Columns = make([]string, len(header))
	for i, h := range header {
		col, err := h.ToArray()
		if err != nil || len(col) != 2 {
			return nil, fmt.Errorf("header column %d: malformed", i)
		}
		if res.Columns[i], err = col[1].ToString(); err != nil {
			return nil, fmt.Errorf("header column %d: %w", i, err)
		}
	}

	rows, err := raw[1].ToArray()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	res.Rows = make([][]any, 0, len(rows))
	for i, row := range rows {
		cells, err := row.ToArray()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		decoded := make([]any, len(cells))
		for j, cell := range cells {
			if decoded[j], err = decodeValue(cell); err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i, j, err)
			}
		}
		res.Rows = append(res.Rows, decoded)
	}

	res.Stats = decodeStats(raw[2])
	return res, nil
}

func decodeStats(msg rueidis.RedisMessage) []string {
	arr, err := msg.ToArray()
	if err != nil {
		return nil
	}
	stats := make([]string, 0, len(arr))
	for _, s := range arr {
		if v, err := s.ToString(); err == nil {
			stats = append(stats, v)
		}
	}
	return stats
}

// decodeValue decodes one [type, value] pair.
func decodeValue(msg rueidis.RedisMessage) (any, error) {
	pair, err := msg.ToArray()
	if err != nil {
		return nil, err
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("value pair of length %d", len(pair))
	}
	typ, err := pair[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("value type: %w", err)
	}
	v := pair[1]

	switch typ {
	case valueNull:
		return nil, nil
	case valueString:
		return v.ToString()
	case valueInteger:
		return v.AsInt64()
	case valueBoolean:
		s, err := v.ToString()
		if err != nil {
			return nil, err
		}
		return strconv.ParseBool(s)
	case valueDouble:
		return v.AsFloat64()
	case valueArray:
		items, err := v.ToArray()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, it := range items {
			if out[i], err = decodeValue(it); err != nil {
				return nil, err
			}
		}
		return out, nil
	case valueMap:
		flat, err := v.ToArray()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			key, err := flat[i].ToString()
			if err != nil {
				return nil, err
			}
			if out[key], err = decodeValue(flat[i+1]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case valuePoint:
		coords, err := v.ToArray()
		if err != nil || len(coords) != 2 {
			return nil, fmt.Errorf("malformed point")
		}
		lat, err := coords[0].AsFloat64()
		if err != nil {
			return nil, err
		}
		lon, err := coords[1].AsFloat64()
		if err != nil {
			return nil, err
		}
		return map[string]any{"latitude": lat, "longitude": lon}, nil
	case valueEdge, valueNode, valuePath:
		return nil, fmt.Errorf("graph entity type %d: project properties instead: %w", typ, db.ErrUnsupported)
	default:
		return nil, fmt.Errorf("value type %d: %w", typ, db.ErrUnsupported)
	}
}
