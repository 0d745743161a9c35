package contextkey

import (
	"fmt"
	"strings"
)

// Unknown is the sentinel used for missing or empty attributes so that
// sparse contexts still map to a stable key.
const Unknown = "unknown"

const separator = ":"

// DefaultSchema is the ordered attribute subset used for weight-learning
// buckets: industry, deal size bucket, pipeline stage.
func DefaultSchema() []string {
	return []string{"industry", "deal_size", "stage"}
}

// Generator maps situational attributes to a deterministic,
// bounded-cardinality bucket key. It is pure: no I/O, no state beyond
// the schema captured at construction.
type Generator struct {
	schema []string
}

func NewGenerator(schema []string) (*Generator, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("context key schema must name at least one attribute")
	}
	for _, attr := range schema {
		if strings.TrimSpace(attr) == "" {
			return nil, fmt.Errorf("context key schema contains an empty attribute name")
		}
	}
	return &Generator{schema: append([]string(nil), schema...)}, nil
}

// Key joins the schema attributes into a stable bucket key, e.g.
// "tech:large:proposal". Missing or empty attributes become "unknown";
// extra attributes are ignored. Same attributes always yield the same key.
func (g *Generator) Key(attrs map[string]string) string {
	parts := make([]string, len(g.schema))
	for i, attr := range g.schema {
		parts[i] = normalize(attrs[attr])
	}
	return strings.Join(parts, separator)
}

// SizeBucket collapses a raw deal amount into one of four coarse
// buckets, keeping key cardinality bounded.
func SizeBucket(amount float64) string {
	switch {
	case amount <= 0:
		return Unknown
	case amount < 50_000:
		return "small"
	case amount < 250_000:
		return "mid"
	case amount < 1_000_000:
		return "large"
	default:
		return "strategic"
	}
}

func normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return Unknown
	}
	v = strings.ReplaceAll(v, separator, "_")
	return strings.Join(strings.Fields(v), "_")
}
