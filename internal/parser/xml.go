package parser

import (
	"encoding/xml"
	"fmt"
	"log/slog"

	"panaudit/internal/model"
)

// StreamingThreshold is the content size above which ParseXML switches to the
// incremental token walk. Large exports are processed one entry at a time to
// bound memory; the extracted fields are identical on both paths.
var StreamingThreshold = 5 * 1024 * 1024

type xmlConfig struct {
	XMLName xml.Name     `xml:"config"`
	Devices []xmlDevices `xml:"devices"`
}

type xmlDevices struct {
	Entries []xmlDeviceEntry `xml:"entry"`
}

type xmlDeviceEntry struct {
	DeviceConfig []xmlDeviceConfig `xml:"deviceconfig"`
	Vsys         []xmlVsys         `xml:"vsys"`
}

type xmlDeviceConfig struct {
	System []struct {
		Version string `xml:"version"`
	} `xml:"system"`
}

type xmlVsys struct {
	Entries []xmlVsysEntry `xml:"entry"`
}

type xmlVsysEntry struct {
	Address  []xmlAddressContainer `xml:"address"`
	Service  []xmlServiceContainer `xml:"service"`
	Rulebase []xmlRulebase         `xml:"rulebase"`
}

type xmlAddressContainer struct {
	Entries []xmlAddressEntry `xml:"entry"`
}

type xmlServiceContainer struct {
	Entries []xmlServiceEntry `xml:"entry"`
}

type xmlRulebase struct {
	Security []xmlSecurity `xml:"security"`
}

type xmlSecurity struct {
	Rules []xmlRules `xml:"rules"`
}

type xmlRules struct {
	Entries []xmlRuleEntry `xml:"entry"`
}

type xmlMembers struct {
	Members []string `xml:"member"`
}

type xmlRuleEntry struct {
	XMLName     xml.Name    `xml:"entry"`
	Name        string      `xml:"name,attr"`
	From        *xmlMembers `xml:"from"`
	To          *xmlMembers `xml:"to"`
	Source      *xmlMembers `xml:"source"`
	Destination *xmlMembers `xml:"destination"`
	Service     *xmlMembers `xml:"service"`
	Action      string      `xml:"action"`
	Disabled    string      `xml:"disabled"`
}

type xmlAddressEntry struct {
	XMLName   xml.Name `xml:"entry"`
	Name      string   `xml:"name,attr"`
	IPNetmask *string  `xml:"ip-netmask"`
	FQDN      *string  `xml:"fqdn"`
}

type xmlServiceEntry struct {
	XMLName  xml.Name `xml:"entry"`
	Name     string   `xml:"name,attr"`
	Protocol *struct {
		TCP *struct {
			Port string `xml:"port"`
		} `xml:"tcp"`
		UDP *struct {
			Port string `xml:"port"`
		} `xml:"udp"`
	} `xml:"protocol"`
}

// ParseXML parses a Palo Alto XML configuration export into rules, objects
// and metadata. Empty content and malformed XML are errors; well-formed XML
// that lacks the expected sections yields empty slices and zero counts.
func ParseXML(content []byte) ([]model.Rule, []model.Object, model.Metadata, error) {
	if len(content) == 0 {
		return nil, nil, model.Metadata{}, fmt.Errorf("empty configuration content")
	}

	if len(content) > StreamingThreshold {
		rules, objects, meta, err := parseXMLStreaming(content)
		if err == nil {
			return rules, objects, meta, nil
		}
		slog.Warn("Streaming XML parse failed, falling back to in-memory parse", "error", err)
	}

	var cfg xmlConfig
	if err := xml.Unmarshal(content, &cfg); err != nil {
		if syn, ok := err.(*xml.SyntaxError); ok {
			return nil, nil, model.Metadata{}, fmt.Errorf("invalid XML syntax at line %d: %s", syn.Line, syn.Msg)
		}
		return nil, nil, model.Metadata{}, fmt.Errorf("configuration must have a <config> root element: %w", err)
	}

	var rules []model.Rule
	var objects []model.Object
	version := "unknown"

	for _, devices := range cfg.Devices {
		for _, device := range devices.Entries {
			if version == "unknown" {
				for _, dc := range device.DeviceConfig {
					for _, sys := range dc.System {
						if sys.Version != "" {
							version = sys.Version
							break
						}
					}
				}
			}
			for _, vsys := range device.Vsys {
				for _, vsysEntry := range vsys.Entries {
					for _, addr := range vsysEntry.Address {
						for _, entry := range addr.Entries {
							objects = append(objects, addressObject(entry))
						}
					}
					for _, svc := range vsysEntry.Service {
						for _, entry := range svc.Entries {
							objects = append(objects, serviceObject(entry))
						}
					}
					for _, rb := range vsysEntry.Rulebase {
						for _, sec := range rb.Security {
							for _, rs := range sec.Rules {
								for i, entry := range rs.Entries {
									rules = append(rules, ruleFromEntry(entry, i, len(rules)+1))
								}
							}
						}
					}
				}
			}
		}
	}

	meta := buildMetadata(version, rules, objects)
	slog.Info("Parsed XML configuration", "rules", len(rules), "objects", len(objects), "firmware", meta.FirmwareVersion)
	return rules, objects, meta, nil
}

func ruleFromEntry(entry xmlRuleEntry, sectionIndex, position int) model.Rule {
	name := entry.Name
	if name == "" {
		name = fmt.Sprintf("rule_%d", sectionIndex)
	}
	action := entry.Action
	if action == "" {
		action = "allow"
	}
	raw, _ := xml.Marshal(entry)
	return model.Rule{
		Name:       name,
		Type:       "security",
		SrcZone:    firstMember(entry.From),
		DstZone:    firstMember(entry.To),
		Src:        firstMember(entry.Source),
		Dst:        firstMember(entry.Destination),
		Service:    firstMember(entry.Service),
		Action:     action,
		Position:   position,
		IsDisabled: entry.Disabled == "yes",
		RawSource:  string(raw),
	}
}

func addressObject(entry xmlAddressEntry) model.Object {
	value := ""
	if entry.IPNetmask != nil {
		value = *entry.IPNetmask
	} else if entry.FQDN != nil {
		value = *entry.FQDN
	}
	raw, _ := xml.Marshal(entry)
	return model.Object{
		Name:      entry.Name,
		Type:      model.ObjectTypeAddress,
		Value:     value,
		RawSource: string(raw),
	}
}

func serviceObject(entry xmlServiceEntry) model.Object {
	value := ""
	if entry.Protocol != nil {
		if entry.Protocol.TCP != nil {
			if entry.Protocol.TCP.Port != "" {
				value = "tcp/" + entry.Protocol.TCP.Port
			}
		} else if entry.Protocol.UDP != nil {
			if entry.Protocol.UDP.Port != "" {
				value = "udp/" + entry.Protocol.UDP.Port
			}
		}
	}
	raw, _ := xml.Marshal(entry)
	return model.Object{
		Name:      entry.Name,
		Type:      model.ObjectTypeService,
		Value:     value,
		RawSource: string(raw),
	}
}

func firstMember(m *xmlMembers) string {
	if m == nil || len(m.Members) == 0 || m.Members[0] == "" {
		return "any"
	}
	return m.Members[0]
}

func buildMetadata(version string, rules []model.Rule, objects []model.Object) model.Metadata {
	meta := model.Metadata{FirmwareVersion: version, RuleCount: len(rules)}
	for _, obj := range objects {
		switch obj.Type {
		case model.ObjectTypeAddress:
			meta.AddressObjectCount++
		case model.ObjectTypeService:
			meta.ServiceObjectCount++
		}
	}
	return meta
}
