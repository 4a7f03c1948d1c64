package analysis

import (
	"log/slog"

	"panaudit/internal/model"
)

// AnalyzeObjectUsage cross-references objects against rule src/dst/service
// fields and populates UsedInRules and IsRedundant in place.
//
// Matching is exact string equality on the object name: no object-group
// resolution, no CIDR containment, no case folding. An object whose value is
// shared with a directly used object but which is itself unreferenced is
// marked redundant rather than unused; its displayed usage count stays zero.
func AnalyzeObjectUsage(rules []model.Rule, objects []model.Object) {
	index := make(map[string]int, len(objects))
	for i := range objects {
		objects[i].UsedInRules = 0
		objects[i].IsRedundant = false
		index[objects[i].Name] = i
	}

	for _, rule := range rules {
		for _, field := range [3]string{rule.Src, rule.Dst, rule.Service} {
			if i, ok := index[field]; ok {
				objects[i].UsedInRules++
			}
		}
	}

	byValue := make(map[string][]int)
	for i := range objects {
		if objects[i].Value == "" {
			continue
		}
		byValue[objects[i].Value] = append(byValue[objects[i].Value], i)
	}

	for _, group := range byValue {
		if len(group) < 2 {
			continue
		}
		anyUsed := false
		for _, i := range group {
			if objects[i].UsedInRules > 0 {
				anyUsed = true
				break
			}
		}
		if !anyUsed {
			continue
		}
		for _, i := range group {
			if objects[i].UsedInRules == 0 {
				objects[i].IsRedundant = true
			}
		}
	}

	used, unused, redundant := 0, 0, 0
	for i := range objects {
		switch {
		case objects[i].UsedInRules > 0:
			used++
		case objects[i].IsRedundant:
			redundant++
		default:
			unused++
		}
	}
	slog.Info("Object usage analysis completed", "objects", len(objects), "used", used, "unused", unused, "redundant", redundant)
}
