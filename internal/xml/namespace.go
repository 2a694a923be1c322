package xml

import "github.com/beevik/etree"

// ICalendar is the xCal namespace (RFC 6321).
const ICalendar = "urn:ietf:params:xml:ns:icalendar-2.0"

// AddNamespaces declares the xCal namespace as the default namespace of the
// document root.
func AddNamespaces(doc *etree.Document) {
	root := doc.Root()
	if root == nil {
		return
	}
	root.CreateAttr("xmlns", ICalendar)
}
