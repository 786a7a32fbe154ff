package parser

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// cssNode is a Node backed by a goquery selection. Invalid CSS selectors
// match nothing.
type cssNode struct {
	sel *goquery.Selection
}

func parseCSS(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return cssNode{sel: doc.Selection}, nil
}

func (n cssNode) Find(selector string) ([]Node, error) {
	if selector == "" || selector == "." {
		return []Node{n}, nil
	}

	var nodes []Node
	n.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, cssNode{sel: s})
	})
	return nodes, nil
}

func (n cssNode) Text() string {
	return n.sel.Text()
}

func (n cssNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}
