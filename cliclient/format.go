package cliclient

import (
	"fmt"
	"io"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"github.com/gurre/nats3/types"
)

// OutputFormat selects how nats3ctl renders a list or single job.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

// WriteStoreJobs renders rows in the requested format. No table-rendering
// library appears anywhere in the retrieved corpus, so table output falls
// back to text/tabwriter; see DESIGN.md.
func WriteStoreJobs(w io.Writer, format OutputFormat, jobs []types.StoreJob) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTREAM\tSUBJECT\tBUCKET")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", j.ID, j.Name, j.Status, j.Stream, j.Subject, j.Bucket)
	}
	return tw.Flush()
}

// WriteLoadJobs mirrors WriteStoreJobs for load jobs.
func WriteLoadJobs(w io.Writer, format OutputFormat, jobs []types.LoadJob) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBUCKET\tREAD_SUBJECT\tWRITE_SUBJECT")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Status, j.Bucket, j.ReadSubject, j.WriteSubject)
	}
	return tw.Flush()
}
