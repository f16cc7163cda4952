// Package report renders batch outcomes as a table, markdown, or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fixagent/prverify/internal/model"
	"github.com/fixagent/prverify/internal/runner"
)

// Write renders a batch result in the requested format.
func Write(batch *runner.BatchResult, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(batch, w)
	case "json":
		return writeJSON(batch, w)
	default:
		return writeTable(batch, w)
	}
}

type row struct {
	Key      string
	PR       string
	Status   string
	Duration string
	Detail   string
}

func rows(batch *runner.BatchResult) []row {
	keys := make([]string, 0, len(batch.Results))
	for k := range batch.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]row, 0, len(keys))
	for _, k := range keys {
		res := batch.Results[k]
		out = append(out, row{
			Key:      k,
			PR:       fmt.Sprintf("#%d", res.PRNumber),
			Status:   statusOf(res),
			Duration: durationOf(res),
			Detail:   detailOf(res),
		})
	}
	return out
}

// statusOf keeps the verified-failure vs infrastructure-exception
// distinction visible to the user.
func statusOf(res *model.TrialResult) string {
	switch {
	case res.Success():
		return "PASS"
	case res.Exception != nil:
		return "ERROR"
	default:
		return "FAIL"
	}
}

func durationOf(res *model.TrialResult) string {
	if d, ok := res.Duration(); ok {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return "-"
}

func detailOf(res *model.TrialResult) string {
	if res.Exception != nil {
		return res.Exception.Type
	}
	if res.Verification != nil && !res.Verification.Success {
		return res.Verification.ErrorMessage
	}
	return ""
}

func writeTable(batch *runner.BatchResult, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tPR\tSTATUS\tDURATION\tDETAIL")
	fmt.Fprintln(tw, strings.Repeat("-", 70))
	for _, r := range rows(batch) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Key, r.PR, r.Status, r.Duration, r.Detail)
	}
	s := batch.Summary
	fmt.Fprintln(tw, strings.Repeat("-", 70))
	fmt.Fprintf(tw, "TOTAL %d\t\tPASS %d / FAIL %d\t\t\n", s.Total, s.Succeeded, s.Failed)
	return tw.Flush()
}

func writeMarkdown(batch *runner.BatchResult, w io.Writer) error {
	fmt.Fprintln(w, "| Task | PR | Status | Duration | Detail |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, r := range rows(batch) {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n", r.Key, r.PR, r.Status, r.Duration, r.Detail)
	}
	s := batch.Summary
	fmt.Fprintf(w, "\n**Total:** %d, **passed:** %d, **failed:** %d\n", s.Total, s.Succeeded, s.Failed)
	return nil
}

func writeJSON(batch *runner.BatchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary runner.Summary                `json:"summary"`
		Results map[string]*model.TrialResult `json:"results"`
	}{batch.Summary, batch.Results})
}
