package analysis

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"panaudit/internal/model"
)

// Result holds the four independent finding lists produced by AnalyzeRules.
type Result struct {
	UnusedRules      []model.UnusedRuleFinding
	DuplicateRules   []model.DuplicateRuleFinding
	ShadowedRules    []model.ShadowedRuleFinding
	OverlappingRules []model.OverlappingRuleFinding
}

// AnalyzeRules classifies an ordered ruleset into unused, duplicate,
// shadowed and overlapping findings. It is deterministic given rule order and
// performs no I/O. The shadow and overlap scans are pairwise over all rules;
// O(n^2) in rule count is the documented scaling limit.
//
// Disabled rules are handled unevenly across the detectors on purpose:
// duplicate and overlap detection consider them, the catch-all-deny unused
// sub-check and shadow detection do not. That asymmetry is part of the
// contract this analyzer replicates.
func AnalyzeRules(rules []model.Rule) Result {
	slog.Info("Starting rule analysis", "rules", len(rules))

	sorted := make([]model.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	result := Result{
		UnusedRules:      detectUnusedRules(sorted),
		DuplicateRules:   detectDuplicateRules(sorted),
		ShadowedRules:    detectShadowedRules(sorted),
		OverlappingRules: detectOverlappingRules(sorted),
	}

	slog.Info("Rule analysis completed",
		"unused", len(result.UnusedRules),
		"duplicate", len(result.DuplicateRules),
		"shadowed", len(result.ShadowedRules),
		"overlapping", len(result.OverlappingRules))
	return result
}

func detectUnusedRules(rules []model.Rule) []model.UnusedRuleFinding {
	var findings []model.UnusedRuleFinding

	for _, rule := range rules {
		var reasons []string

		if rule.IsDisabled {
			reasons = append(reasons, "Rule is disabled")
		}

		action := strings.ToLower(rule.Action)
		if !rule.IsDisabled && (action == "deny" || action == "drop") {
			// Deny rules in the last 20% of the ruleset covering everything
			// are presumed vestigial catch-alls.
			if float64(rule.Position) > float64(len(rules))*0.8 &&
				strings.EqualFold(rule.Src, "any") &&
				strings.EqualFold(rule.Dst, "any") &&
				strings.EqualFold(rule.Service, "any") {
				reasons = append(reasons, "Catch-all deny rule at end of ruleset")
			}
		}

		if hasImpossibleConditions(rule) {
			reasons = append(reasons, "Rule has impossible or contradictory conditions")
		}

		if isUnreachable(rule, rules) {
			reasons = append(reasons, "Rule is unreachable due to position and broader rules above")
		}

		if len(reasons) == 0 {
			continue
		}

		severity := "high"
		if rule.IsDisabled {
			severity = "medium"
		}
		findings = append(findings, model.UnusedRuleFinding{
			Name:           rule.Name,
			Position:       rule.Position,
			Action:         rule.Action,
			Type:           "unused_rule",
			Severity:       severity,
			Reasons:        reasons,
			Description:    fmt.Sprintf("Rule '%s' appears to be unused: %s", rule.Name, strings.Join(reasons, "; ")),
			Recommendation: unusedRuleRecommendation(rule, reasons),
		})
	}
	return findings
}

func unusedRuleRecommendation(rule model.Rule, reasons []string) string {
	if rule.IsDisabled {
		return fmt.Sprintf("Consider removing disabled rule '%s' if it's no longer needed", rule.Name)
	}
	if strings.Contains(strings.ToLower(strings.Join(reasons, " ")), "catch-all deny") {
		return fmt.Sprintf("Review if catch-all deny rule '%s' is necessary", rule.Name)
	}
	return fmt.Sprintf("Review rule '%s' for potential removal or modification", rule.Name)
}

func detectDuplicateRules(rules []model.Rule) []model.DuplicateRuleFinding {
	var findings []model.DuplicateRuleFinding
	seen := make(map[string]model.Rule)

	for _, rule := range rules {
		sig := ruleSignature(rule)
		original, dup := seen[sig]
		if !dup {
			seen[sig] = rule
			continue
		}
		findings = append(findings, model.DuplicateRuleFinding{
			Type:           "duplicate_rules",
			Severity:       "medium",
			OriginalRule:   original.Ref(),
			DuplicateRule:  rule.Ref(),
			Description:    fmt.Sprintf("Rule '%s' is identical to rule '%s'", rule.Name, original.Name),
			Recommendation: fmt.Sprintf("Consider removing duplicate rule '%s' at position %d", rule.Name, rule.Position),
		})
	}
	return findings
}

func detectShadowedRules(rules []model.Rule) []model.ShadowedRuleFinding {
	var findings []model.ShadowedRuleFinding

	for i, rule := range rules {
		if rule.IsDisabled {
			continue
		}
		// A rule is shadowed by at most one rule: the first sufficient one.
		for _, higher := range rules[:i] {
			if higher.IsDisabled {
				continue
			}
			if !isShadowedBy(rule, higher) {
				continue
			}
			findings = append(findings, model.ShadowedRuleFinding{
				Name:           rule.Name,
				Position:       rule.Position,
				Type:           "shadowed_rule",
				Severity:       "high",
				ShadowedBy:     higher.Ref(),
				Description:    fmt.Sprintf("Rule '%s' is shadowed by rule '%s' at position %d", rule.Name, higher.Name, higher.Position),
				Recommendation: fmt.Sprintf("Consider reordering or removing shadowed rule '%s'", rule.Name),
			})
			break
		}
	}
	return findings
}

func detectOverlappingRules(rules []model.Rule) []model.OverlappingRuleFinding {
	var findings []model.OverlappingRuleFinding

	for i, rule1 := range rules {
		for _, rule2 := range rules[i+1:] {
			if !rulesOverlap(rule1, rule2) {
				continue
			}
			findings = append(findings, model.OverlappingRuleFinding{
				Type:           "overlapping_rules",
				Severity:       "medium",
				Rule1:          rule1.Ref(),
				Rule2:          rule2.Ref(),
				Description:    fmt.Sprintf("Rules '%s' and '%s' have overlapping traffic scope", rule1.Name, rule2.Name),
				Recommendation: "Review rules for potential consolidation or clarification of intent",
			})
		}
	}
	return findings
}

// ruleSignature identifies functionally identical rules. Exact match on the
// stored field values, no normalization.
func ruleSignature(r model.Rule) string {
	return strings.Join([]string{r.SrcZone, r.DstZone, r.Src, r.Dst, r.Service, r.Action}, "-")
}

func hasImpossibleConditions(r model.Rule) bool {
	src := strings.ToLower(r.Src)
	dst := strings.ToLower(r.Dst)
	// Same non-wildcard address on both sides across different zones is a
	// contradiction. Simplified sanity check, not a reachability proof.
	return src != "any" && dst != "any" && src == dst && r.SrcZone != r.DstZone
}

// isUnreachable reports whether an earlier-positioned rule covers this one
// entirely, regardless of either rule's action.
func isUnreachable(rule model.Rule, rules []model.Rule) bool {
	for _, other := range rules {
		if other.Position < rule.Position && scopeBroaderOrEqual(other, rule) {
			return true
		}
	}
	return false
}

func isShadowedBy(rule, higher model.Rule) bool {
	if higher.Action == rule.Action && scopeBroaderOrEqual(higher, rule) {
		return true
	}
	higherAction := strings.ToLower(higher.Action)
	if (higherAction == "deny" || higherAction == "drop") &&
		strings.ToLower(rule.Action) == "allow" &&
		scopeBroaderOrEqual(higher, rule) {
		return true
	}
	return false
}

// scopeBroaderOrEqual reports whether broader's scope contains narrower's on
// every dimension. Tokens are opaque: "any" covers everything, otherwise only
// a case-insensitive exact match covers.
func scopeBroaderOrEqual(broader, narrower model.Rule) bool {
	return covers(broader.SrcZone, narrower.SrcZone) &&
		covers(broader.DstZone, narrower.DstZone) &&
		covers(broader.Src, narrower.Src) &&
		covers(broader.Dst, narrower.Dst) &&
		covers(broader.Service, narrower.Service)
}

func covers(broader, narrower string) bool {
	broader = strings.ToLower(broader)
	return broader == "any" || broader == strings.ToLower(narrower)
}

func rulesOverlap(r1, r2 model.Rule) bool {
	return tokensOverlap(r1.SrcZone, r2.SrcZone) &&
		tokensOverlap(r1.DstZone, r2.DstZone) &&
		tokensOverlap(r1.Src, r2.Src) &&
		tokensOverlap(r1.Dst, r2.Dst) &&
		tokensOverlap(r1.Service, r2.Service)
}

// tokensOverlap is the symmetric containment-or-equality check: weaker than
// covers, it flags pairs that could both match the same traffic even when
// neither fully contains the other.
func tokensOverlap(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	return a == "any" || b == "any" || a == b
}
