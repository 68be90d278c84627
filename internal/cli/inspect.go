// internal/cli/inspect.go
package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/inspect"
	"github.com/web-traces/wlprep/internal/ui"
)

var (
	inspectPage  string
	execInline   bool
	markdownPath string
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <demo-id>",
	Short: "Triage a recorded demonstration",
	Long: `Reports what a demonstration's recording actually contains: descriptor
files, artifact counts, and a per-page audit of titles, instrumented
element ids, inline scripts and captured derived artifacts.

With --exec-inline the page's inline scripts run in a sandboxed
JavaScript interpreter to recover the global state they assign; with
--markdown the page is converted to GitHub-flavored markdown. Both need
--page. The --json flag switches the report to machine-readable output.`,
	Example: `  # Audit a whole demonstration
  wlprep inspect aaabtsd

  # Audit one page and recover its inline state
  wlprep inspect aaabtsd --page page-0-0 --exec-inline

  # Convert a page to markdown for reading
  wlprep inspect aaabtsd --page page-0-0 --markdown page.md`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectPage, "page", "", "Narrow the audit to one page (with or without .html)")
	inspectCmd.Flags().BoolVar(&execInline, "exec-inline", false, "Run the page's inline scripts and report recovered globals")
	inspectCmd.Flags().StringVar(&markdownPath, "markdown", "", "Write the page as markdown to this file")
}

func runInspect(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	demo := args[0]
	if (execInline || markdownPath != "") && inspectPage == "" {
		return fmt.Errorf("--exec-inline and --markdown require --page")
	}

	insp := inspect.NewInspector(a.Config)
	report, err := insp.Demo(demo, inspectPage)
	if err != nil {
		return err
	}

	var state map[string]any
	if execInline {
		state, err = insp.InlineState(demo, inspectPage)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		out := struct {
			*inspect.Report
			InlineState map[string]any `json:"inline_state,omitempty"`
		}{report, state}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(data))
	} else {
		renderReport(report)
		if execInline {
			renderInlineState(state)
		}
	}

	if markdownPath != "" {
		if err := insp.MarkdownDump(demo, inspectPage, markdownPath); err != nil {
			return err
		}
		fmt.Printf("\n%s Markdown saved to %s\n", ui.Success("✓"), markdownPath)
	}

	return nil
}

func renderReport(r *inspect.Report) {
	fmt.Printf("\n%s%s%s  %s\n", ui.ColorBold+ui.ColorCyan, r.Demo, ui.ColorReset, ui.ColorDim+r.Dir+ui.ColorReset)

	fmt.Printf("\n%s", ui.ColorBold+"Descriptors:"+ui.ColorReset)
	for _, name := range []string{"replay.json", "metadata.json", "form.json"} {
		if r.Descriptors[name] {
			fmt.Printf("  %s %s", ui.Success("✓"), name)
		} else {
			fmt.Printf("  %s %s", ui.Error("✗"), name)
		}
	}
	fmt.Println()

	c := r.Counts
	fmt.Printf("%s %d pages, %d screenshots, %d bboxes, %d axtrees, %d dom snapshots, %d extra props, %d failed markers\n",
		ui.ColorBold+"Files:"+ui.ColorReset,
		c.Pages, c.Screenshots, c.BBoxes, c.AXTrees, c.DOMSnapshots, c.ExtraProps, c.FailedMarkers)
	if r.MissingDerived > 0 {
		fmt.Printf("%s %s\n", ui.ColorBold+"Missing derived artifacts:"+ui.ColorReset, ui.Error(fmt.Sprintf("%d", r.MissingDerived)))
	}

	if len(r.Pages) == 0 {
		return
	}
	fmt.Printf("\n%s\n", ui.Bold("Pages:"))
	for i := range r.Pages {
		renderPage(&r.Pages[i])
	}
}

func renderPage(p *inspect.PageReport) {
	mark := ui.Success("✓")
	if p.Failed || p.Error != "" {
		mark = ui.Error("✗")
	}
	title := p.Title
	if title == "" {
		title = "(no title)"
	}
	fmt.Printf("%s %s  %s\n", mark, ui.ColorWhite+p.Name+ui.ColorReset, ui.ColorDim+title+ui.ColorReset)

	if p.Error != "" {
		fmt.Printf("    %s %s\n", ui.ColorDim+"Error:"+ui.ColorReset, ui.Error(p.Error))
		return
	}

	fmt.Printf("    %s %d (%d unique)  %s %d inline, %d external  %s %d  %s %d",
		ui.ColorDim+"uids:"+ui.ColorReset, p.UIDs, p.UniqueUIDs,
		ui.ColorDim+"scripts:"+ui.ColorReset, p.InlineScripts, p.ExternalScripts,
		ui.ColorDim+"links:"+ui.ColorReset, p.Links,
		ui.ColorDim+"images:"+ui.ColorReset, p.Images)
	if p.Charset != "" && p.Charset != "utf-8" {
		fmt.Printf("  %s %s", ui.ColorDim+"charset:"+ui.ColorReset, p.Charset)
	}
	fmt.Println()

	captures := []struct {
		label string
		ok    bool
	}{
		{"screenshot", p.Screenshot},
		{"bboxes", p.BBoxes},
		{"axtree", p.AXTree},
		{"dom", p.DOMSnapshot},
		{"extra", p.ExtraProps},
	}
	fmt.Printf("   ")
	for _, c := range captures {
		if c.ok {
			fmt.Printf(" %s %s", ui.Success("✓"), c.label)
		} else {
			fmt.Printf(" %s %s", ui.Error("✗"), c.label)
		}
	}
	if p.Failed {
		fmt.Printf("  %s", ui.Error("[capture failed]"))
	}
	fmt.Println()

	if p.DOM != nil {
		fmt.Printf("    %s %d documents, %d nodes, %d strings\n",
			ui.ColorDim+"dom snapshot:"+ui.ColorReset, p.DOM.Documents, p.DOM.Nodes, p.DOM.Strings)
	}
}

func renderInlineState(state map[string]any) {
	fmt.Printf("\n%s\n", ui.Bold("Recovered Inline State:"))
	if len(state) == 0 {
		fmt.Printf("  %s\n", ui.ColorDim+"(no globals assigned)"+ui.ColorReset)
		return
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val, err := json.Marshal(state[k])
		if err != nil {
			val = []byte(fmt.Sprintf("%v", state[k]))
		}
		preview := string(val)
		if len(preview) > 120 {
			preview = preview[:120] + "..."
		}
		fmt.Printf("  %s %s\n", ui.ColorBold+k+":"+ui.ColorReset, ui.ColorWhite+preview+ui.ColorReset)
	}
}
