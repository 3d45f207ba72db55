package repl

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/labstack/gommon/color"
)

func format(res *api.Response, cl *color.Color) string {
	sb := &strings.Builder{}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "I ran into an issue with that request:"
		}
		fmt.Fprintln(sb, cl.Red("❌ "+msg))
		if res.Error != "" {
			fmt.Fprintln(sb, res.Error)
		}
		if res.GeneratedQuery != "" {
			fmt.Fprintln(sb, "\nThis was the query I tried to run:")
			fmt.Fprintln(sb, res.GeneratedQuery)
		}
		return sb.String()
	}
	switch intent.Kind(res.Intent) {
	case intent.ReceiptProcessing:
		fmt.Fprintln(sb, cl.Green("✅ "+res.Message))
		if rep, ok := res.Data.(*batch.Report[api.ReceiptResult]); ok {
			for _, r := range rep.Results {
				if r.Success {
					fmt.Fprintf(sb, "  %s: $%.2f\n", r.FileName, r.Amount)
				} else {
					fmt.Fprintf(sb, "  %s: %s\n", r.FileName, cl.Red(r.Error))
				}
			}
			writeCounts(sb, rep.Success, rep.Failed, rep.Skipped, rep.Errors)
		}
	case intent.AudioProcessing:
		fmt.Fprintln(sb, cl.Green("✅ "+res.Message))
		if rep, ok := res.Data.(*batch.Report[api.AudioResult]); ok {
			if rep.Total == 0 {
				fmt.Fprintln(sb, "No audio files need processing.")
			}
			for _, r := range rep.Results {
				if r.Success {
					fb := ""
					if r.Fallback {
						fb = " (fallback transcript)"
					}
					fmt.Fprintf(sb, "  #%d %s: summary of %d chars%s\n", r.ID, r.Name, r.SummaryLength, fb)
				} else {
					fmt.Fprintf(sb, "  #%d %s: %s\n", r.ID, r.Name, cl.Red(r.Error))
				}
			}
			writeCounts(sb, rep.Success, rep.Failed, rep.Skipped, rep.Errors)
		}
	case intent.AudioSummary:
		sums, _ := res.Data.([]api.Summary)
		if len(sums) == 0 {
			fmt.Fprintln(sb, "No audio summaries found.")
			return sb.String()
		}
		fmt.Fprintf(sb, "Found %d audio summar%s:\n", len(sums), ifPlural(len(sums), "y", "ies"))
		for _, s := range sums {
			fmt.Fprintf(sb, "\n#%d %s\n%s\n", s.ID, s.Name, s.Summary)
		}
	case intent.ReceiptURL:
		if u, ok := res.Data.(*api.ReceiptURL); ok {
			fmt.Fprintf(sb, "URL for %s:\n%s\n", u.FileName, u.URL)
		}
	default:
		writeQuery(sb, res, cl)
	}
	return sb.String()
}

func writeQuery(sb *strings.Builder, res *api.Response, cl *color.Color) {
	switch res.OperationType {
	case "select":
		rows, _ := res.Data.([]map[string]interface{})
		if len(rows) == 0 {
			fmt.Fprintln(sb, "No matching records found.")
			return
		}
		fmt.Fprintf(sb, "Found %d record%s:\n", len(rows), ifPlural(len(rows), "", "s"))
		writeTable(sb, rows)
	case "update":
		fmt.Fprintln(sb, cl.Green(fmt.Sprintf("✅ Updated the %s data successfully.", res.Table)))
	case "insert":
		fmt.Fprintln(sb, cl.Green(fmt.Sprintf("✅ Added new data to %s successfully.", res.Table)))
	case "delete":
		fmt.Fprintln(sb, cl.Green(fmt.Sprintf("✅ Removed data from %s successfully.", res.Table)))
	default:
		fmt.Fprintln(sb, cl.Green("✅ Operation completed successfully."))
	}
}

func writeCounts(sb *strings.Builder, ok, failed, skipped int, errs map[string]int) {
	fmt.Fprintf(sb, "Succeeded: %d, failed: %d", ok, failed)
	if skipped > 0 {
		fmt.Fprintf(sb, ", skipped: %d", skipped)
	}
	fmt.Fprintln(sb)
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "  %s: %d\n", k, errs[k])
	}
}

func writeTable(sb *strings.Builder, rows []map[string]interface{}) {
	cols := columns(rows)
	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = cell(r[c])
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	_ = tw.Flush()
}

// columns returns id first, others sorted
func columns(rows []map[string]interface{}) []string {
	set := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			set[k] = true
		}
	}
	res := make([]string, 0, len(set))
	for k := range set {
		if k != "id" {
			res = append(res, k)
		}
	}
	sort.Strings(res)
	if set["id"] {
		res = append([]string{"id"}, res...)
	}
	return res
}

func cell(v interface{}) string {
	if v == nil {
		return ""
	}
	s := strings.ReplaceAll(fmt.Sprintf("%v", v), "\n", " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}

func ifPlural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
