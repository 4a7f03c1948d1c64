package analysis

import "panaudit/internal/model"

// Summary carries the aggregate counts for one analysis run.
type Summary struct {
	TotalRules            int `json:"total_rules"`
	TotalObjects          int `json:"total_objects"`
	UsedObjectsCount      int `json:"used_objects_count"`
	UnusedObjectsCount    int `json:"unused_objects_count"`
	RedundantObjectsCount int `json:"redundant_objects_count"`
	DisabledRulesCount    int `json:"disabled_rules_count"`
}

// Report is the full analysis response shape. Every list is non-nil so the
// serialized form always carries arrays.
type Report struct {
	Summary          Summary                        `json:"analysis_summary"`
	UsedObjects      []model.Object                 `json:"usedObjects"`
	UnusedObjects    []model.Object                 `json:"unusedObjects"`
	RedundantObjects []model.Object                 `json:"redundantObjects"`
	UnusedRules      []model.UnusedRuleFinding      `json:"unusedRules"`
	DuplicateRules   []model.DuplicateRuleFinding   `json:"duplicateRules"`
	ShadowedRules    []model.ShadowedRuleFinding    `json:"shadowedRules"`
	OverlappingRules []model.OverlappingRuleFinding `json:"overlappingRules"`
}

// BuildReport merges the usage-annotated objects and the rule findings into
// the caller-facing response. Objects must already have been through
// AnalyzeObjectUsage; each lands in exactly one of the three object buckets.
func BuildReport(rules []model.Rule, objects []model.Object, findings Result) Report {
	report := Report{
		UsedObjects:      []model.Object{},
		UnusedObjects:    []model.Object{},
		RedundantObjects: []model.Object{},
		UnusedRules:      []model.UnusedRuleFinding{},
		DuplicateRules:   []model.DuplicateRuleFinding{},
		ShadowedRules:    []model.ShadowedRuleFinding{},
		OverlappingRules: []model.OverlappingRuleFinding{},
	}

	report.Summary.TotalRules = len(rules)
	report.Summary.TotalObjects = len(objects)
	for _, rule := range rules {
		if rule.IsDisabled {
			report.Summary.DisabledRulesCount++
		}
	}

	for _, obj := range objects {
		switch {
		case obj.UsedInRules > 0:
			report.UsedObjects = append(report.UsedObjects, obj)
		case obj.IsRedundant:
			report.RedundantObjects = append(report.RedundantObjects, obj)
		default:
			report.UnusedObjects = append(report.UnusedObjects, obj)
		}
	}
	report.Summary.UsedObjectsCount = len(report.UsedObjects)
	report.Summary.UnusedObjectsCount = len(report.UnusedObjects)
	report.Summary.RedundantObjectsCount = len(report.RedundantObjects)

	if findings.UnusedRules != nil {
		report.UnusedRules = findings.UnusedRules
	}
	if findings.DuplicateRules != nil {
		report.DuplicateRules = findings.DuplicateRules
	}
	if findings.ShadowedRules != nil {
		report.ShadowedRules = findings.ShadowedRules
	}
	if findings.OverlappingRules != nil {
		report.OverlappingRules = findings.OverlappingRules
	}

	return report
}
