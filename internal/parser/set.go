package parser

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"panaudit/internal/model"
)

// ruleAttrKeywords are the attribute keywords that terminate a rule name and
// introduce a value on "set ... security rules" commands.
var ruleAttrKeywords = map[string]bool{
	"from":        true,
	"to":          true,
	"source":      true,
	"destination": true,
	"service":     true,
	"action":      true,
	"application": true,
	"disabled":    true,
}

// ParseSet parses a Palo Alto CLI "set"-command export. Object commands are
// self-contained one-liners; security rule commands are incremental and are
// accumulated per rule name, emitted in first-seen order with dense positions.
// Unrecognized or malformed lines are logged and skipped.
func ParseSet(content string) ([]model.Rule, []model.Object, model.Metadata, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, model.Metadata{}, fmt.Errorf("empty configuration content")
	}

	lines := preprocessSetContent(content)

	acc := map[string]*model.Rule{}
	ruleLines := map[string][]string{}
	var order []string
	var objects []model.Object

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "set address "):
			obj, ok := parseSetAddress(line)
			if !ok {
				slog.Warn("Skipping unparseable address command", "line", line)
				continue
			}
			objects = append(objects, obj)
		case strings.HasPrefix(line, "set service "):
			obj, ok := parseSetService(line)
			if !ok {
				slog.Warn("Skipping unparseable service command", "line", line)
				continue
			}
			objects = append(objects, obj)
		case strings.HasPrefix(line, "set security rules ") || strings.HasPrefix(line, "set rulebase security rules "):
			name, ok := applySetRuleLine(line, acc)
			if !ok {
				slog.Warn("Skipping unparseable rule command", "line", line)
				continue
			}
			if len(ruleLines[name]) == 0 {
				order = append(order, name)
			}
			ruleLines[name] = append(ruleLines[name], line)
		default:
			slog.Debug("Skipping unrecognized set command", "line", line)
		}
	}

	rules := make([]model.Rule, 0, len(order))
	for i, name := range order {
		rule := acc[name]
		rule.Position = i + 1
		rule.RawSource = strings.Join(ruleLines[name], "\n")
		rules = append(rules, *rule)
	}

	meta := buildMetadata("unknown", rules, objects)
	slog.Info("Parsed set configuration", "rules", len(rules), "objects", len(objects))
	return rules, objects, meta, nil
}

// preprocessSetContent splits the export into trimmed logical lines, breaking
// apart lines where several "set ..." commands were concatenated without a
// newline between them.
func preprocessSetContent(content string) []string {
	var out []string
	for _, raw := range strings.Split(content, "\n") {
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if raw == "" {
			continue
		}
		for i, part := range strings.Split(raw, " set ") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if i > 0 {
				part = "set " + part
			}
			out = append(out, part)
		}
	}
	return out
}

// splitQuoted tokenizes a command line on whitespace, keeping quoted spans
// ("Name With Spaces" or 'Name With Spaces') as single tokens without quotes.
func splitQuoted(line string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	flush()
	return tokens
}

func parseSetAddress(line string) (model.Object, bool) {
	tokens := splitQuoted(line)
	if len(tokens) < 3 {
		return model.Object{}, false
	}
	name := tokens[2]
	value := ""
	rest := tokens[3:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "ip-netmask", "fqdn", "ip-range":
			if i+1 < len(rest) {
				value = rest[i+1]
			}
		}
		if value != "" {
			break
		}
	}
	if value == "" {
		// Some exports carry a bare IP or CIDR with no keyword.
		for _, tok := range rest {
			if looksLikeAddress(tok) {
				value = tok
				break
			}
		}
	}
	return model.Object{
		Name:      name,
		Type:      model.ObjectTypeAddress,
		Value:     value,
		RawSource: line,
	}, true
}

func parseSetService(line string) (model.Object, bool) {
	tokens := splitQuoted(line)
	if len(tokens) < 3 {
		return model.Object{}, false
	}
	name := tokens[2]
	proto, port := "", ""
	rest := tokens[3:]
	for i := 0; i < len(rest)-1; i++ {
		switch rest[i] {
		case "protocol":
			proto = rest[i+1]
		case "port":
			port = rest[i+1]
		}
	}
	value := ""
	if proto != "" && port != "" {
		value = proto + "/" + port
	}
	return model.Object{
		Name:      name,
		Type:      model.ObjectTypeService,
		Value:     value,
		RawSource: line,
	}, true
}

// applySetRuleLine tokenizes one rule command and overwrites the attributes it
// carries on the accumulated rule, creating the accumulator entry with "any"
// defaults on first sight of the name. Returns the rule name.
func applySetRuleLine(line string, acc map[string]*model.Rule) (string, bool) {
	tokens := splitQuoted(line)

	rulesIdx := -1
	for i, tok := range tokens {
		if tok == "rules" {
			rulesIdx = i
			break
		}
	}
	if rulesIdx == -1 || rulesIdx+1 >= len(tokens) {
		return "", false
	}

	// The rule name runs from after "rules" to the first attribute keyword;
	// a quoted name is already a single token, an unquoted name with spaces
	// spans several.
	var nameTokens []string
	i := rulesIdx + 1
	for ; i < len(tokens); i++ {
		if ruleAttrKeywords[tokens[i]] {
			break
		}
		nameTokens = append(nameTokens, tokens[i])
	}
	if len(nameTokens) == 0 {
		return "", false
	}
	name := strings.Join(nameTokens, " ")

	rule, ok := acc[name]
	if !ok {
		rule = &model.Rule{
			Name:    name,
			Type:    "security",
			SrcZone: "any",
			DstZone: "any",
			Src:     "any",
			Dst:     "any",
			Service: "any",
			Action:  "allow",
		}
		acc[name] = rule
	}

	for i < len(tokens) {
		key := tokens[i]
		if key == "disabled" {
			// The disable marker is sticky for the rule.
			if i+1 < len(tokens) && tokens[i+1] == "no" {
				i += 2
				continue
			}
			rule.IsDisabled = true
			i += 2
			continue
		}
		if !ruleAttrKeywords[key] {
			i++
			continue
		}
		value, next := memberValue(tokens, i+1)
		i = next
		if value == "" {
			continue
		}
		switch key {
		case "from":
			rule.SrcZone = value
		case "to":
			rule.DstZone = value
		case "source":
			rule.Src = value
		case "destination":
			rule.Dst = value
		case "service":
			rule.Service = value
		case "action":
			rule.Action = value
		case "application":
			// Applications are not part of the analyzed schema.
		}
	}

	return name, true
}

// memberValue reads an attribute value starting at tokens[i]. Bracketed
// member lists keep only the first member; multi-value fields are not
// modeled.
func memberValue(tokens []string, i int) (string, int) {
	if i >= len(tokens) {
		return "", i
	}
	if tokens[i] == "[" {
		value := ""
		j := i + 1
		for ; j < len(tokens); j++ {
			if tokens[j] == "]" {
				j++
				break
			}
			if value == "" {
				value = tokens[j]
			}
		}
		return value, j
	}
	return tokens[i], i + 1
}

func looksLikeAddress(s string) bool {
	host := s
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		host = s[:idx]
	}
	return net.ParseIP(host) != nil
}
