package content

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxExcerptLength   = 250
	excerptFallback    = "No description available."
	wordsPerReadMinute = 200
)

var (
	slugSeparators = regexp.MustCompile(`[\s_&]+`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9-]+`)
)

// Slugify lowercases the text and collapses separators into hyphens.
func Slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = slugSeparators.ReplaceAllString(slug, "-")
	slug = slugInvalid.ReplaceAllString(slug, "")
	return strings.Trim(slug, "-")
}

// PlainText extracts the visible text of an HTML fragment, joining text nodes
// with single spaces.
func PlainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var parts []string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
}

// Excerpt derives the curated description from a page body: plain text capped
// at 250 characters, with a fallback for empty bodies.
func Excerpt(fragment string) string {
	text := PlainText(fragment)
	if text == "" {
		return excerptFallback
	}
	if len(text) > maxExcerptLength {
		return text[:maxExcerptLength] + "..."
	}
	return text
}

// ReadMinutes estimates reading time from a page body at 200 words per
// minute, never reporting less than one minute.
func ReadMinutes(fragment string) int {
	words := len(strings.Fields(PlainText(fragment)))
	minutes := (words + wordsPerReadMinute/2) / wordsPerReadMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// ContentTags filters status labels out of an external label list; what
// remains becomes the page's tags.
func ContentTags(labels []string) []string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		if strings.HasPrefix(label, "status-") {
			continue
		}
		tags = append(tags, label)
	}
	return tags
}

// ToStorageFormat translates editor HTML into the external store's storage
// format. Attachment placeholder divs (data-attachment-type/data-file-name)
// become the corresponding image or PDF viewer macros; everything else passes
// through untouched.
func ToStorageFormat(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", eris.Wrap(err, "parsing editor html")
	}

	for _, node := range nodes {
		body.AppendChild(node)
	}

	translatePlaceholders(body)

	var builder strings.Builder
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&builder, child); err != nil {
			return "", eris.Wrap(err, "rendering storage format")
		}
	}

	return builder.String(), nil
}

func translatePlaceholders(root *html.Node) {
	for _, placeholder := range findPlaceholders(root) {
		kind := attrValue(placeholder, "data-attachment-type")
		fileName := attrValue(placeholder, "data-file-name")
		if fileName == "" {
			continue
		}

		var macro *html.Node
		switch kind {
		case "image", "video":
			// The image macro renders the right player from the file extension.
			macro = &html.Node{Type: html.ElementNode, Data: "ac:image"}
			macro.AppendChild(attachmentRef(fileName))
		case "pdf":
			macro = &html.Node{Type: html.ElementNode, Data: "ac:structured-macro",
				Attr: []html.Attribute{{Key: "ac:name", Val: "viewpdf"}}}
			param := &html.Node{Type: html.ElementNode, Data: "ac:parameter",
				Attr: []html.Attribute{{Key: "ac:name", Val: "name"}}}
			param.AppendChild(attachmentRef(fileName))
			macro.AppendChild(param)
		default:
			continue
		}

		target := placeholder
		if parent := placeholder.Parent; parent != nil && parent.DataAtom == atom.P {
			target = parent
		}
		target.Parent.InsertBefore(macro, target)
		target.Parent.RemoveChild(target)
	}
}

func findPlaceholders(root *html.Node) []*html.Node {
	var placeholders []*html.Node
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == atom.Div && attrValue(node, "data-attachment-type") != "" {
			placeholders = append(placeholders, node)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return placeholders
}

func attachmentRef(fileName string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "ri:attachment",
		Attr: []html.Attribute{{Key: "ri:filename", Val: fileName}}}
}

func attrValue(node *html.Node, key string) string {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
