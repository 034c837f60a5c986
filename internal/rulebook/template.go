package rulebook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ai-devops/autoheal/internal/domain"
)

// segment is either literal text or a named placeholder.
type segment struct {
	literal string
	field   string
}

// Render substitutes {name} placeholders in every token from target.
// "{{" and "}}" escape literal braces. A placeholder with no matching target
// field is an error; the command is never run with a hole in it.
func Render(template []string, target map[string]any) ([]string, error) {
	argv := make([]string, 0, len(template))
	for _, tok := range template {
		segs, err := parseToken(tok)
		if err != nil {
			return nil, err
		}

		var b strings.Builder
		for _, s := range segs {
			if s.field == "" {
				b.WriteString(s.literal)
				continue
			}
			v, ok := target[s.field]
			if !ok || v == nil {
				return nil, fmt.Errorf("%w: {%s}", domain.ErrUnresolvedPlaceholder, s.field)
			}
			b.WriteString(formatValue(v))
		}
		argv = append(argv, b.String())
	}
	return argv, nil
}

// Placeholders lists the target fields a template needs.
func Placeholders(template []string) ([]string, error) {
	var fields []string
	seen := make(map[string]bool)
	for _, tok := range template {
		segs, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		for _, s := range segs {
			if s.field != "" && !seen[s.field] {
				seen[s.field] = true
				fields = append(fields, s.field)
			}
		}
	}
	return fields, nil
}

func checkTemplate(template []string) error {
	_, err := Placeholders(template)
	return err
}

func parseToken(tok string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder

	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c == '{' && i+1 < len(tok) && tok[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tok) && tok[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tok[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder in %q", tok)
			}
			field := tok[i+1 : i+1+end]
			// Conversion and format specs are accepted but not applied.
			if cut := strings.IndexAny(field, "!:"); cut >= 0 {
				field = field[:cut]
			}
			field = strings.TrimSpace(field)
			if field == "" || strings.ContainsAny(field, "{") {
				return nil, fmt.Errorf("invalid placeholder in %q", tok)
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{literal: lit.String()})
				lit.Reset()
			}
			segs = append(segs, segment{field: field})
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("single '}' in %q", tok)
		default:
			lit.WriteByte(c)
		}
	}

	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return segs, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}
