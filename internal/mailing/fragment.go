package mailing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseBody parses a complete document, or a fragment in a <body> context so
// leading <style>, <meta> or <title> elements stay where they were written
// instead of being hoisted into a synthesized <head>.
func parseBody(src string) (*goquery.Document, error) {
	if htmlTag.MatchString(src) {
		return goquery.NewDocumentFromReader(strings.NewReader(src))
	}
	bodyCtx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), bodyCtx)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(root), nil
}
