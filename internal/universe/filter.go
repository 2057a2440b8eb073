package universe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filter narrows a rule's universe. It is stored as JSON on the rule.
type Filter struct {
	Indices []string `json:"indices,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// ParseFilter decodes a rule's stored filter; empty input is the zero filter.
func ParseFilter(raw []byte) (Filter, error) {
	var f Filter
	if len(raw) == 0 || string(raw) == "null" {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return Filter{}, fmt.Errorf("universe filter: %w", err)
	}
	if f.Limit < 0 {
		return Filter{}, fmt.Errorf("universe filter: limit must be >= 0")
	}
	return f, nil
}

func (f Filter) normalized(defaults []string) Filter {
	out := Filter{Limit: f.Limit}
	indices := f.Indices
	if len(indices) == 0 {
		indices = defaults
	}
	out.Indices = upperSet(indices)
	out.Exclude = upperSet(f.Exclude)
	return out
}

func (f Filter) key() string {
	return fmt.Sprintf("%s|%s|%d", strings.Join(f.Indices, ","), strings.Join(f.Exclude, ","), f.Limit)
}

func upperSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
