package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		// block-level siblings would otherwise be glued together
		if child.Type == html.ElementNode {
			buffer.WriteByte(' ')
		}
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText removes non printable characters and collapses whitespace.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SelectionText returns the cleaned text of every node in the selection, skipping scripts and styles.
func SelectionText(sel *goquery.Selection) string {
	var out strings.Builder
	for _, n := range sel.Nodes {
		out.WriteString(GetText(n))
		out.WriteByte(' ')
	}
	return CleanText(out.String())
}

var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// Sentences splits cleaned text into sentences, the terminating punctuation is kept.
func Sentences(text string) []string {
	text = CleanText(text)
	if text == "" {
		return nil
	}
	marked := sentenceBoundary.ReplaceAllString(text, "$1\n")
	parts := strings.Split(marked, "\n")

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MetaContent returns the trimmed content attribute of the first element matching selector.
func MetaContent(doc *goquery.Document, selector string) string {
	return CleanText(doc.Find(selector).First().AttrOr("content", ""))
}
