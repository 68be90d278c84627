// internal/snapshot/capture.go
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/pkg/models"
)

// CaptureOptions controls how a single page render behaves.
type CaptureOptions struct {
	PageLoadTimeout time.Duration // how long to wait for the document to settle
	SettleWait      time.Duration // extra delay after the document reports complete
}

// Capture holds the three artifacts produced for one rendered page, already
// remapped to recording ids.
type Capture struct {
	AXTree      *AXTree
	DOMSnapshot *DOMSnapshot
	ExtraProps  map[string]*models.ElementProperties
}

// CapturePage renders a recorded HTML document in the given browser tab and
// extracts the accessibility tree, the DOM snapshot, and per-element
// properties. The document is set directly from the string, not navigated,
// so the page's original URL never resolves.
//
// The caller bounds the whole operation through ctx; a page that hangs in
// render is abandoned when the deadline fires.
func CapturePage(ctx context.Context, html string, opts CaptureOptions) (*Capture, error) {
	capture := &Capture{}

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			if err := page.SetDocumentContent(tree.Frame.ID, html).Do(ctx); err != nil {
				return fmt.Errorf("set document content: %w", err)
			}
			return nil
		}),
		waitForSettle(opts),
		chromedp.Evaluate(injectScript, nil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			snap, err := captureDOMSnapshot(ctx)
			if err != nil {
				return err
			}
			tree, err := captureAXTree(ctx)
			if err != nil {
				return err
			}
			capture.DOMSnapshot = snap
			capture.AXTree = tree
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	// Recover markers and extract properties while ids are still in the
	// attribute form, then remap everything to recording ids.
	RecoverAXMarkers(capture.AXTree)
	CleanupRoleDescriptions(capture.DOMSnapshot)
	props := ExtractElementProperties(capture.DOMSnapshot)
	RemapAXTree(capture.AXTree)
	RemapDOMSnapshot(capture.DOMSnapshot)
	capture.ExtraProps = RemapExtraProps(props)

	return capture, nil
}

// waitForSettle polls the document ready state. Replayed pages reference
// resources that no longer resolve, so a load that never settles is
// expected; the capture proceeds anyway once the timeout passes.
func waitForSettle(opts CaptureOptions) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.Now().Add(opts.PageLoadTimeout)
		for {
			var state string
			if err := chromedp.Evaluate("document.readyState", &state).Do(ctx); err != nil {
				return fmt.Errorf("ready state: %w", err)
			}
			if state == "complete" {
				break
			}
			if time.Now().After(deadline) {
				log.Debug().Msg("Page did not settle before timeout, capturing anyway")
				break
			}
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if opts.SettleWait > 0 {
			select {
			case <-time.After(opts.SettleWait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}

// captureDOMSnapshot grabs the full DOM snapshot with layout rects. The
// rendered rects are kept even though recorded boxes later overwrite the
// per-element geometry, since downstream consumers read the layout tree.
func captureDOMSnapshot(ctx context.Context) (*DOMSnapshot, error) {
	documents, table, err := domsnapshot.CaptureSnapshot([]string{}).
		WithIncludeDOMRects(true).
		WithIncludePaintOrder(true).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("dom snapshot: %w", err)
	}
	return &DOMSnapshot{Documents: documents, Strings: table}, nil
}

// captureAXTree walks the frame tree and merges the accessibility nodes of
// every frame into one flat tree, root frame first.
func captureAXTree(ctx context.Context) (*AXTree, error) {
	tree, err := page.GetFrameTree().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("frame tree: %w", err)
	}

	var frames []cdp.FrameID
	queue := []*page.FrameTree{tree}
	for len(queue) > 0 {
		ft := queue[0]
		queue = queue[1:]
		if ft == nil || ft.Frame == nil {
			continue
		}
		frames = append(frames, ft.Frame.ID)
		queue = append(queue, ft.ChildFrames...)
	}

	merged := &AXTree{}
	for i, frameID := range frames {
		nodes, err := accessibility.GetFullAXTree().WithFrameID(frameID).Do(ctx)
		if err != nil {
			// Child frames may have been torn down between the frame tree
			// walk and this call; only the root frame is required.
			if i == 0 {
				return nil, fmt.Errorf("accessibility tree: %w", err)
			}
			log.Debug().Str("frame", string(frameID)).Err(err).Msg("Skipping frame without accessibility tree")
			continue
		}
		for _, n := range nodes {
			merged.Nodes = append(merged.Nodes, &AXNode{Node: n})
		}
	}
	return merged, nil
}
