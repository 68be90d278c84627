// internal/inspect/markdown.go
package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/web-traces/wlprep/internal/dataset"
)

// MarkdownDump converts one recorded page to markdown and writes it to
// outPath, so a step can be read without opening a browser.
func (ins *Inspector) MarkdownDump(demo, pageName, outPath string) error {
	if !strings.HasSuffix(pageName, ".html") {
		pageName += ".html"
	}
	path := filepath.Join(dataset.DemosDir(ins.cfg.DataDir), demo, dataset.DirPages, pageName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	htmlStr, _, _ := dataset.DecodeHTML(raw)

	mdStr, err := ConvertPage(htmlStr)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(mdStr), 0644)
}

// ConvertPage renders cleaned page HTML as GitHub-flavored markdown.
func ConvertPage(htmlStr string) (string, error) {
	cleaned, err := cleanHTML(htmlStr)
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return converter.ConvertString(cleaned)
}

// cleanHTML drops non-content elements and every attribute except link and
// image essentials. Recorded pages carry instrumentation attributes on most
// elements, which would otherwise drown the conversion.
func cleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			switch node.Data {
			case "a":
				if attr.Key == "href" || attr.Key == "title" {
					kept = append(kept, attr)
				}
			case "img":
				if attr.Key == "src" || attr.Key == "alt" || attr.Key == "title" {
					kept = append(kept, attr)
				}
			}
		}
		node.Attr = kept
	})

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlStr), nil
}
