package converter

import (
	"fmt"

	"github.com/bnema/vibeview/internal/models"
)

// Deduplicate removes rules with the same kind and pattern, keeping the first
func Deduplicate(rules []models.FilterRule) []models.FilterRule {
	seen := make(map[string]bool)
	result := make([]models.FilterRule, 0, len(rules))

	for _, r := range rules {
		key := fmt.Sprintf("%d|%s", r.Kind, r.Pattern)
		if !seen[key] {
			seen[key] = true
			result = append(result, r)
		}
	}

	return result
}
