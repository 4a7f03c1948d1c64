package store

import (
	"encoding/json"
	"time"

	"panaudit/internal/model"
)

// AuditSession is one uploaded-and-parsed configuration snapshot.
type AuditSession struct {
	ID          uint       `json:"audit_id" gorm:"primaryKey"`
	SessionName string     `json:"session_name" gorm:"size:255"`
	Filename    string     `json:"filename" gorm:"size:255"`
	FileHash    string     `json:"file_hash" gorm:"size:64"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Metadata    string     `json:"-" gorm:"type:text"`
}

// MetadataMap decodes the stored parse metadata for responses.
func (a *AuditSession) MetadataMap() map[string]any {
	out := map[string]any{}
	if a.Metadata != "" {
		_ = json.Unmarshal([]byte(a.Metadata), &out)
	}
	return out
}

type FirewallRule struct {
	ID         uint   `gorm:"primaryKey"`
	AuditID    uint   `gorm:"index"`
	RuleName   string `gorm:"size:255"`
	RuleType   string `gorm:"size:50"`
	SrcZone    string `gorm:"size:255"`
	DstZone    string `gorm:"size:255"`
	Src        string `gorm:"type:text"`
	Dst        string `gorm:"type:text"`
	Service    string `gorm:"type:text"`
	Action     string `gorm:"size:50"`
	Position   int
	IsDisabled bool
	RawSource  string `gorm:"type:text"`
}

func (r FirewallRule) ToModel() model.Rule {
	return model.Rule{
		Name:       r.RuleName,
		Type:       r.RuleType,
		SrcZone:    r.SrcZone,
		DstZone:    r.DstZone,
		Src:        r.Src,
		Dst:        r.Dst,
		Service:    r.Service,
		Action:     r.Action,
		Position:   r.Position,
		IsDisabled: r.IsDisabled,
		RawSource:  r.RawSource,
	}
}

func ruleRecord(auditID uint, r model.Rule) FirewallRule {
	return FirewallRule{
		AuditID:    auditID,
		RuleName:   r.Name,
		RuleType:   r.Type,
		SrcZone:    r.SrcZone,
		DstZone:    r.DstZone,
		Src:        r.Src,
		Dst:        r.Dst,
		Service:    r.Service,
		Action:     r.Action,
		Position:   r.Position,
		IsDisabled: r.IsDisabled,
		RawSource:  r.RawSource,
	}
}

type ObjectDefinition struct {
	ID          uint   `gorm:"primaryKey"`
	AuditID     uint   `gorm:"index"`
	Name        string `gorm:"size:255"`
	ObjectType  string `gorm:"size:50"`
	Value       string `gorm:"type:text"`
	UsedInRules int
	IsRedundant bool
	RawSource   string `gorm:"type:text"`
}

func (o ObjectDefinition) ToModel() model.Object {
	return model.Object{
		Name:        o.Name,
		Type:        o.ObjectType,
		Value:       o.Value,
		UsedInRules: o.UsedInRules,
		IsRedundant: o.IsRedundant,
		RawSource:   o.RawSource,
	}
}

func objectRecord(auditID uint, o model.Object) ObjectDefinition {
	return ObjectDefinition{
		AuditID:     auditID,
		Name:        o.Name,
		ObjectType:  o.Type,
		Value:       o.Value,
		UsedInRules: o.UsedInRules,
		IsRedundant: o.IsRedundant,
		RawSource:   o.RawSource,
	}
}
