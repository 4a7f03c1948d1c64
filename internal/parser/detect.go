package parser

import "bytes"

// Format names accepted by the front ends.
const (
	FormatXML = "xml"
	FormatSet = "set"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// DetectFormat sniffs whether content is an XML export or a set-command
// export. Anything that does not open with an XML tag is treated as set text.
func DetectFormat(content []byte) string {
	trimmed := bytes.TrimPrefix(content, utf8BOM)
	trimmed = bytes.TrimLeft(trimmed, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return FormatXML
	}
	return FormatSet
}
