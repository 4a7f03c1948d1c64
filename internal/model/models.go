package model

// ObjectType values for Object.Type.
const (
	ObjectTypeAddress = "address"
	ObjectTypeService = "service"
)

// Rule is one security rule from a parsed configuration. Position is the
// 1-based evaluation order and is the only ordering signal the analyzers use.
type Rule struct {
	Name       string `json:"rule_name"`
	Type       string `json:"rule_type"`
	SrcZone    string `json:"src_zone"`
	DstZone    string `json:"dst_zone"`
	Src        string `json:"src"`
	Dst        string `json:"dst"`
	Service    string `json:"service"`
	Action     string `json:"action"`
	Position   int    `json:"position"`
	IsDisabled bool   `json:"is_disabled"`
	RawSource  string `json:"-"`
}

// Object is one address or service object definition. UsedInRules and
// IsRedundant are zero after parsing and populated by the usage analyzer.
type Object struct {
	Name        string `json:"name"`
	Type        string `json:"object_type"`
	Value       string `json:"value"`
	UsedInRules int    `json:"used_in_rules"`
	IsRedundant bool   `json:"is_redundant"`
	RawSource   string `json:"-"`
}

// Metadata describes one parsed configuration snapshot.
type Metadata struct {
	FirmwareVersion    string `json:"firmware_version"`
	RuleCount          int    `json:"rule_count"`
	AddressObjectCount int    `json:"address_object_count"`
	ServiceObjectCount int    `json:"service_object_count"`
}

// RuleRef identifies a rule inside a finding.
type RuleRef struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type UnusedRuleFinding struct {
	Name           string   `json:"name"`
	Position       int      `json:"position"`
	Action         string   `json:"action"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Reasons        []string `json:"reasons"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type DuplicateRuleFinding struct {
	Type           string  `json:"type"`
	Severity       string  `json:"severity"`
	OriginalRule   RuleRef `json:"original_rule"`
	DuplicateRule  RuleRef `json:"duplicate_rule"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

type ShadowedRuleFinding struct {
	Name           string  `json:"name"`
	Position       int     `json:"position"`
	Type           string  `json:"type"`
	Severity       string  `json:"severity"`
	ShadowedBy     RuleRef `json:"shadowed_by"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

type OverlappingRuleFinding struct {
	Type           string  `json:"type"`
	Severity       string  `json:"severity"`
	Rule1          RuleRef `json:"rule1"`
	Rule2          RuleRef `json:"rule2"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

// Ref returns the rule's finding reference.
func (r Rule) Ref() RuleRef {
	return RuleRef{Name: r.Name, Position: r.Position}
}
