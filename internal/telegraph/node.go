package telegraph

import "encoding/json"

// Node is a Telegraph DOM node. A node with an empty Tag is a text node.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Children []Node
	Text     string
}

// Text returns a text node.
func Text(s string) Node { return Node{Text: s} }

// El returns an element node.
func El(tag string, children ...Node) Node { return Node{Tag: tag, Children: children} }

// Link returns an <a href> element.
func Link(href string, children ...Node) Node {
	return Node{Tag: "a", Attrs: map[string]string{"href": href}, Children: children}
}

type elementJSON struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// MarshalJSON renders text nodes as bare strings, as the API expects.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Tag == "" {
		return json.Marshal(n.Text)
	}
	return json.Marshal(elementJSON{Tag: n.Tag, Attrs: n.Attrs, Children: n.Children})
}

// UnmarshalJSON accepts both forms.
func (n *Node) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = Node{Text: s}
		return nil
	}
	var el elementJSON
	if err := json.Unmarshal(data, &el); err != nil {
		return err
	}
	*n = Node{Tag: el.Tag, Attrs: el.Attrs, Children: el.Children}
	return nil
}
