// internal/inspect/page.go
package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/dataset"
)

// PageReport is the audit of one recorded page.
type PageReport struct {
	Name            string    `json:"page"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description,omitempty"`
	Charset         string    `json:"charset,omitempty"`
	UIDs            int       `json:"uids"`
	UniqueUIDs      int       `json:"unique_uids"`
	Links           int       `json:"links"`
	Images          int       `json:"images"`
	InlineScripts   int       `json:"inline_scripts"`
	ExternalScripts int       `json:"external_scripts"`
	Screenshot      bool      `json:"screenshot"`
	BBoxes          bool      `json:"bboxes"`
	AXTree          bool      `json:"axtree"`
	DOMSnapshot     bool      `json:"dom_snapshot"`
	ExtraProps      bool      `json:"extra_element_properties"`
	Failed          bool      `json:"failed_marker,omitempty"`
	DOM             *DOMStats `json:"dom,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// auditPage inspects one recorded page. IO and parse problems land in the
// report instead of failing the whole demonstration.
func (ins *Inspector) auditPage(demoDir, pageName string) *PageReport {
	pr := &PageReport{Name: pageName}
	stem := strings.TrimSuffix(pageName, filepath.Ext(pageName))

	if i, j, err := dataset.PageNums(pageName); err == nil {
		pr.Screenshot = fileExists(filepath.Join(demoDir, dataset.DirScreenshots, dataset.ScreenshotFile(i, j)))
		pr.BBoxes = fileExists(filepath.Join(demoDir, dataset.DirBBoxes, dataset.BBoxesFile(i)))
	}
	domPath := filepath.Join(demoDir, dataset.DirDOMSnaps, stem+".json")
	pr.AXTree = fileExists(filepath.Join(demoDir, dataset.DirAXTrees, stem+".json"))
	pr.DOMSnapshot = fileExists(domPath)
	pr.ExtraProps = fileExists(filepath.Join(demoDir, dataset.DirExtraProps, stem+".json"))
	pr.Failed = fileExists(dataset.FailedMarkerPath(demoDir, pageName))

	raw, err := os.ReadFile(filepath.Join(demoDir, dataset.DirPages, pageName))
	if err != nil {
		pr.Error = err.Error()
		return pr
	}

	html, cs, decErr := dataset.DecodeHTML(raw)
	pr.Charset = cs
	if decErr != nil {
		log.Debug().Str("page", pageName).Err(decErr).Msg("Charset decode failed, using raw bytes")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		pr.Error = fmt.Sprintf("parse html: %v", err)
		return pr
	}

	pr.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		pr.Description = strings.TrimSpace(desc)
	}

	uids := doc.Find("[" + dataset.UIDKey + "]")
	pr.UIDs = uids.Length()
	seen := map[string]bool{}
	uids.Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr(dataset.UIDKey); ok {
			seen[v] = true
		}
	})
	pr.UniqueUIDs = len(seen)

	pr.Links = doc.Find("a[href]").Length()
	pr.Images = doc.Find("img[src]").Length()
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			pr.ExternalScripts++
		} else {
			pr.InlineScripts++
		}
	})

	if pr.DOMSnapshot {
		stats, err := ReadDOMStats(domPath)
		if err != nil {
			log.Debug().Str("page", pageName).Err(err).Msg("DOM snapshot stats failed")
		} else {
			pr.DOM = stats
		}
	}

	return pr
}

