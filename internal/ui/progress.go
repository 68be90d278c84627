package ui

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar builds the progress bar used by the long-running stages.
// Invisible bars still count, so stage code never branches on visibility.
func NewProgressBar(total int, description string, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionClearOnFinish(),
	)
}

// NewByteProgressBar reports download progress in bytes. A negative total
// renders a spinner, which is what an unknown Content-Length should show.
func NewByteProgressBar(total int64, description string, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionClearOnFinish(),
	)
}
