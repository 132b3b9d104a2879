// Package document defines the compiled form of a post body: a tree of tagged
// nodes produced at build time and walked by the renderer at view time.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
)

// UnitVersion is bumped whenever the node encoding changes shape.
const UnitVersion = 1

// Kind identifies a node variant.
type Kind string

// Component kinds. The renderer resolves each of these through the registry.
const (
	KindHeading1          Kind = "heading1"
	KindHeading2          Kind = "heading2"
	KindHeading3          Kind = "heading3"
	KindHeading4          Kind = "heading4"
	KindHeading5          Kind = "heading5"
	KindHeading6          Kind = "heading6"
	KindParagraph         Kind = "paragraph"
	KindLink              Kind = "link"
	KindList              Kind = "list"
	KindOrderedList       Kind = "orderedList"
	KindBlockquote        Kind = "blockquote"
	KindTable             Kind = "table"
	KindTableHeaderCell   Kind = "tableHeaderCell"
	KindTableDataCell     Kind = "tableDataCell"
	KindHorizontalRule    Kind = "horizontalRule"
	KindPreformattedBlock Kind = "preformattedBlock"
	KindImage             Kind = "image"
	KindCallout           Kind = "Callout"
	KindCustomImage       Kind = "Image"
)

// Intrinsic kinds are built directly by the renderer runtime.
const (
	KindText          Kind = "text"
	KindEmphasis      Kind = "emphasis"
	KindStrong        Kind = "strong"
	KindStrikethrough Kind = "strikethrough"
	KindInlineCode    Kind = "inlineCode"
	KindCode          Kind = "code"
	KindLineBreak     Kind = "lineBreak"
	KindListItem      Kind = "listItem"
	KindTableRow      Kind = "tableRow"
)

var componentKinds = []Kind{
	KindHeading1, KindHeading2, KindHeading3, KindHeading4, KindHeading5, KindHeading6,
	KindParagraph, KindLink, KindList, KindOrderedList, KindBlockquote,
	KindTable, KindTableHeaderCell, KindTableDataCell, KindHorizontalRule,
	KindPreformattedBlock, KindImage, KindCallout, KindCustomImage,
}

var intrinsicKinds = map[Kind]bool{
	KindText: true, KindEmphasis: true, KindStrong: true, KindStrikethrough: true,
	KindInlineCode: true, KindCode: true, KindLineBreak: true, KindListItem: true,
	KindTableRow: true,
}

// ComponentKinds returns the kinds a registry is expected to provide, sorted by name.
func ComponentKinds() []Kind {
	kinds := make([]Kind, len(componentKinds))
	copy(kinds, componentKinds)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ComponentNames is ComponentKinds as strings.
func ComponentNames() []string {
	kinds := ComponentKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

// IsIntrinsic reports whether k is rendered by the runtime instead of the registry.
func (k Kind) IsIntrinsic() bool {
	return intrinsicKinds[k]
}

// HeadingKind maps a level in 1..6 to its heading kind.
func HeadingKind(level int) (Kind, error) {
	if level < 1 || level > 6 {
		return "", fmt.Errorf("heading level %d out of range", level)
	}
	return Kind(fmt.Sprintf("heading%d", level)), nil
}

// Node is one element of the compiled tree. Text is set only on text-bearing
// kinds; Attrs is omitted when empty.
type Node struct {
	Kind     Kind              `json:"kind"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// Attr returns the attribute value or the empty string.
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// SetAttr sets an attribute, allocating the map on first use.
func (n *Node) SetAttr(name, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
}

// Append adds children and returns n for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Heading is a table-of-contents entry.
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Unit is the compiled document. Components records the component-name set the
// unit was compiled against.
type Unit struct {
	Version    int      `json:"version"`
	Components []string `json:"components"`
	Nodes      []*Node  `json:"nodes"`
}

// Marshal encodes the unit. encoding/json sorts map keys, so equal units
// encode to identical bytes.
func (u *Unit) Marshal() ([]byte, error) {
	return json.Marshal(u)
}

// Unmarshal decodes a unit previously produced by Marshal.
func Unmarshal(data []byte) (*Unit, error) {
	var u Unit
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode compiled unit: %w", err)
	}
	if u.Version != UnitVersion {
		return nil, fmt.Errorf("unsupported compiled unit version %d", u.Version)
	}
	return &u, nil
}
