// Package strings parses list-valued settings.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trims each element and drops
// empties and duplicates. Order of first appearance is kept.
//
//	SplitList(" k1:9092, k2:9092,,k1:9092")  // []string{"k1:9092", "k2:9092"}
func SplitList(csv string) []string {
	return dedupe(strings.Split(csv, ","), strings.TrimSpace)
}

// SplitListLower is SplitList with each element lowercased, for values that
// compare case-insensitively such as origins.
func SplitListLower(csv string) []string {
	return dedupe(strings.Split(csv, ","), func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, norm func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
