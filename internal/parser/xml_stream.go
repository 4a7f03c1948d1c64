package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"

	"panaudit/internal/model"
)

// parseXMLStreaming walks the document token by token and decodes one rule or
// object entry at a time, discarding each after extraction. Field semantics
// match the in-memory path exactly.
func parseXMLStreaming(content []byte) ([]model.Rule, []model.Object, model.Metadata, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var rules []model.Rule
	var objects []model.Object
	version := "unknown"
	sectionIndex := 0
	rootSeen := false

	// path holds the open element names from the root down to the parent of
	// the current token.
	var path []string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if syn, ok := err.(*xml.SyntaxError); ok {
				return nil, nil, model.Metadata{}, fmt.Errorf("invalid XML syntax at line %d: %s", syn.Line, syn.Msg)
			}
			return nil, nil, model.Metadata{}, fmt.Errorf("error reading XML stream: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if !rootSeen {
				if el.Name.Local != "config" {
					return nil, nil, model.Metadata{}, fmt.Errorf("configuration must have a <config> root element, found <%s>", el.Name.Local)
				}
				rootSeen = true
				path = append(path, el.Name.Local)
				continue
			}

			if el.Name.Local == "entry" && inVsys(path) {
				switch parent(path) {
				case "address":
					var entry xmlAddressEntry
					if err := dec.DecodeElement(&entry, &el); err != nil {
						return nil, nil, model.Metadata{}, fmt.Errorf("error decoding address entry: %w", err)
					}
					objects = append(objects, addressObject(entry))
					continue
				case "service":
					var entry xmlServiceEntry
					if err := dec.DecodeElement(&entry, &el); err != nil {
						return nil, nil, model.Metadata{}, fmt.Errorf("error decoding service entry: %w", err)
					}
					objects = append(objects, serviceObject(entry))
					continue
				case "rules":
					if slices.Contains(path, "rulebase") && slices.Contains(path, "security") {
						var entry xmlRuleEntry
						if err := dec.DecodeElement(&entry, &el); err != nil {
							return nil, nil, model.Metadata{}, fmt.Errorf("error decoding rule entry: %w", err)
						}
						rules = append(rules, ruleFromEntry(entry, sectionIndex, len(rules)+1))
						sectionIndex++
						continue
					}
				}
			}

			if el.Name.Local == "version" && version == "unknown" &&
				parent(path) == "system" && slices.Contains(path, "deviceconfig") {
				var v string
				if err := dec.DecodeElement(&v, &el); err == nil && v != "" {
					version = v
				}
				continue
			}

			path = append(path, el.Name.Local)

		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
			// A new rules section restarts the fallback-name index.
			if el.Name.Local == "rules" {
				sectionIndex = 0
			}
		}
	}

	if !rootSeen {
		return nil, nil, model.Metadata{}, fmt.Errorf("empty configuration content")
	}

	return rules, objects, buildMetadata(version, rules, objects), nil
}

func parent(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

func inVsys(path []string) bool {
	return slices.Contains(path, "vsys") && slices.Contains(path, "devices")
}
