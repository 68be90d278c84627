// internal/inspect/inline.go
package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/dataset"
)

// scriptBudget caps total inline-script execution per page. Recorded pages
// can carry polling loops that never terminate outside a browser.
const scriptBudget = 3 * time.Second

// InlineState reads one recorded page and returns the global state its
// inline scripts assign.
func (ins *Inspector) InlineState(demo, pageName string) (map[string]any, error) {
	if !strings.HasSuffix(pageName, ".html") {
		pageName += ".html"
	}
	path := filepath.Join(dataset.DemosDir(ins.cfg.DataDir), demo, dataset.DirPages, pageName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	html, _, _ := dataset.DecodeHTML(raw)
	return RecoverInlineState(html)
}

// RecoverInlineState executes the page's inline scripts in a stub browser
// environment and returns the non-standard globals left behind. Sites
// embed their initial state as plain JSON assignments, so even with every
// DOM API missing the interesting variables usually survive.
func RecoverInlineState(html string) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	vm := goja.New()
	timer := time.AfterFunc(scriptBudget, func() { vm.Interrupt("script budget exceeded") })
	defer timer.Stop()

	// Mock basic browser environment, just enough to capture data assignments
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{
		"location": map[string]interface{}{"href": ""},
	})
	vm.Set("location", map[string]interface{}{"href": ""})
	vm.Set("console", map[string]interface{}{
		"log":   func(call goja.FunctionCall) goja.Value { return nil },
		"error": func(call goja.FunctionCall) goja.Value { return nil },
		"warn":  func(call goja.FunctionCall) goja.Value { return nil },
	})

	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		// Skip external scripts
		if _, exists := sel.Attr("src"); exists {
			return
		}
		src := sel.Text()
		if src == "" {
			return
		}
		if _, err := vm.RunString(src); err != nil {
			// Most page scripts fail against the stub environment
			log.Debug().Int("script", i).Err(err).Msg("Inline script failed")
		}
	})

	state := map[string]any{}
	for _, key := range vm.GlobalObject().Keys() {
		if isStandardGlobal(key) {
			continue
		}
		val := vm.Get(key)
		if val == nil {
			continue
		}
		if _, isFn := goja.AssertFunction(val); isFn {
			continue
		}
		if exported := val.Export(); exported != nil {
			state[key] = exported
		}
	}
	return state, nil
}

func isStandardGlobal(key string) bool {
	standards := map[string]bool{
		"window": true, "self": true, "document": true, "location": true, "console": true,
		"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
		"Date": true, "Math": true, "JSON": true, "RegExp": true, "Error": true,
		"Function": true, "parseInt": true, "parseFloat": true, "isNaN": true,
		"isFinite": true, "encodeURI": true, "decodeURI": true, "encodeURIComponent": true,
		"decodeURIComponent": true, "undefined": true, "NaN": true, "Infinity": true,
	}
	return standards[key]
}
