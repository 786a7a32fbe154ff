package parser

import (
	"bytes"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// xpathNode is a Node backed by an x/net/html node queried with htmlquery.
// Relative expressions such as "following-sibling::dd[1]" are evaluated
// from the node itself.
type xpathNode struct {
	n *html.Node
}

func parseXPath(body []byte) (Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return xpathNode{n: doc}, nil
}

func (x xpathNode) Find(selector string) ([]Node, error) {
	if selector == "" {
		return []Node{x}, nil
	}

	found, err := htmlquery.QueryAll(x.n, selector)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(found))
	for _, f := range found {
		nodes = append(nodes, xpathNode{n: f})
	}
	return nodes, nil
}

func (x xpathNode) Text() string {
	return htmlquery.InnerText(x.n)
}

func (x xpathNode) Attr(name string) (string, bool) {
	for _, a := range x.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
