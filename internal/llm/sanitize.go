package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reNumber = regexp.MustCompile(`-?\d[\d.,]*`)

// placeholder strings models emit instead of omitting a field
var placeholders = map[string]struct{}{
	"": {}, "null": {}, "none": {}, "n/a": {}, "na": {}, "-": {}, "unknown": {}, "unbekannt": {}, "k.a.": {},
}

// Sanitize normalizes a decoded model reply against schema before validation:
//   - drops nulls and placeholder strings
//   - coerces numeric strings ("25.000 km", "399,00 €") into numbers
//   - coerces yes/no words into booleans and bare numbers into strings
//
// Keys the schema does not know and values that cannot be coerced are kept
// so that validation rejects them.
func Sanitize(raw []byte, schema map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	sanitizeObject(m, schema, "", &dropped)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Debug("llm.sanitize.dropped", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizeObject(m map[string]any, schema map[string]any, prefix string, dropped *[]string) {
	props, _ := schema["properties"].(map[string]any)
	for k, v := range maps.Clone(m) {
		path := prefix + k
		prop, known := props[k].(map[string]any)
		if !known {
			continue
		}
		if v == nil {
			delete(m, k)
			*dropped = append(*dropped, path+"(null)")
			continue
		}
		if s, ok := v.(string); ok {
			if isPlaceholder(s) {
				delete(m, k)
				*dropped = append(*dropped, path+"(empty)")
				continue
			}
			v = strings.TrimSpace(s)
			m[k] = v
		}

		switch typ, _ := prop["type"].(string); typ {
		case "object":
			if child, ok := v.(map[string]any); ok {
				sanitizeObject(child, prop, path+".", dropped)
				if len(child) == 0 {
					delete(m, k)
				}
			}
		default:
			if f, ok := LookupField(path); ok {
				m[k] = CoerceField(v, f)
			} else {
				m[k] = Coerce(v, typ)
			}
		}
	}
}

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Coerce converts v into the JSON type typ when it can and returns v unchanged otherwise.
func Coerce(v any, typ string) any {
	switch typ {
	case TypeInteger:
		switch t := v.(type) {
		case string:
			if f, ok := ParseNumber(t); ok {
				if f == math.Trunc(f) {
					return int64(f)
				}
				return f
			}
		case float64:
			if t == math.Trunc(t) {
				return int64(t)
			}
		}
	case TypeNumber:
		if s, ok := v.(string); ok {
			if f, ok := ParseNumber(s); ok {
				return f
			}
		}
	case TypeBoolean:
		if s, ok := v.(string); ok {
			if b, ok := ParseBool(s); ok {
				return b
			}
		}
	case TypeString:
		switch t := v.(type) {
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return v
}

// CoerceField is Coerce with the number rules of field f.
func CoerceField(v any, f Field) any {
	if s, ok := v.(string); ok && f.Decimal() && f.Type == TypeNumber {
		if n, ok := ParseDecimal(s); ok {
			return n
		}
	}
	return Coerce(v, f.Type)
}

// ParseNumber reads the first number of s, accepting German and English
// separators: "25.000" is 25000, "6,5" is 6.5, "1.234,56" is 1234.56.
func ParseNumber(s string) (float64, bool) { return parseNumber(s, true) }

// ParseDecimal is ParseNumber without the thousands reading of a single dot:
// "3.990 %" is 3.99.
func ParseDecimal(s string) (float64, bool) { return parseNumber(s, false) }

func parseNumber(s string, thousands bool) (float64, bool) {
	n := reNumber.FindString(s)
	n = strings.TrimRight(n, ".,")
	if n == "" {
		return 0, false
	}

	dot, comma := strings.Count(n, "."), strings.Count(n, ",")
	switch {
	case dot > 0 && comma > 0:
		if strings.LastIndex(n, ",") > strings.LastIndex(n, ".") {
			n = strings.ReplaceAll(n, ".", "")
			n = strings.Replace(n, ",", ".", 1)
		} else {
			n = strings.ReplaceAll(n, ",", "")
		}
	case comma > 1:
		n = strings.ReplaceAll(n, ",", "")
	case comma == 1:
		n = strings.Replace(n, ",", ".", 1)
	case dot > 1:
		n = strings.ReplaceAll(n, ".", "")
	case dot == 1:
		intPart, frac, _ := strings.Cut(strings.TrimPrefix(n, "-"), ".")
		if thousands && len(frac) == 3 && len(intPart) <= 3 && intPart != "0" {
			n = strings.Replace(n, ".", "", 1)
		}
	}

	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseBool accepts German and English yes/no words.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "ja", "y", "j", "x", "vorhanden", "serie", "serienmäßig", "1":
		return true, true
	case "false", "no", "nein", "n", "nicht vorhanden", "0":
		return false, true
	}
	return false, false
}
