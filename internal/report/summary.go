package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

// maxListedFailures caps the failure list in the printed summary.
const maxListedFailures = 20

// WriteSummary prints a human readable summary of r.
func WriteSummary(w io.Writer, r domain.RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "total\t%d\n", r.Total)
	for _, s := range domain.FetchStatuses {
		fmt.Fprintf(tw, "%s\t%d\n", s, r.Count(s))
	}
	fmt.Fprintf(tw, "bytes\t%s\n", formatBytes(r.BytesWritten))
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration().Round(time.Millisecond))

	if len(r.Failures) > 0 {
		fmt.Fprintln(tw)
		for i, f := range r.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(tw, "... and %d more\n", len(r.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Status, f.Candidate.Label(), f.Error)
		}
	}

	return tw.Flush()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
