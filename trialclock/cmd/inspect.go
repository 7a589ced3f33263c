package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/trialclock/datarecording"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [recording.sqlite3]",
	Short: "Print the content of a recording.",
	Long: "`inspect` prints the session information, the trials and, with " +
		"--records, the event records of a recording.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := os.Stat(args[0])
		if err != nil {
			return err
		}

		showRecords, _ := cmd.Flags().GetBool("records")
		limit, _ := cmd.Flags().GetInt("limit")

		reader := datarecording.NewReader(args[0])
		defer reader.Close()

		return inspect(cmd.Context(), cmd.OutOrStdout(), reader,
			showRecords, limit)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("records", false, "Print every event record")
	inspectCmd.Flags().Int("limit", 0, "Maximum number of records to print")
}

func inspect(
	ctx context.Context,
	out io.Writer,
	reader datarecording.DataReader,
	showRecords bool,
	limit int,
) error {
	reader.MapTable(datarecording.SessionInfoTable, datarecording.SessionInfo{})
	reader.MapTable(datarecording.TrialTable, datarecording.TrialRow{})
	reader.MapTable(datarecording.RecordTable, datarecording.RecordRow{})

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	info, _, err := reader.Query(ctx, datarecording.SessionInfoTable,
		datarecording.QueryParams{})
	if err != nil {
		return err
	}

	for _, r := range info {
		i := r.(*datarecording.SessionInfo)
		fmt.Fprintf(w, "%s:\t%s\n", i.Property, i.Value)
	}

	trials, _, err := reader.Query(ctx, datarecording.TrialTable,
		datarecording.QueryParams{OrderBy: "Seq"})
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "TRIAL\tITERATION\tOUTCOME\tEND TICK\tRECORDS\tREASON")
	for _, r := range trials {
		t := r.(*datarecording.TrialRow)
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%s\n",
			t.Trial, t.Iteration, t.Outcome, t.EndTick, t.NumRecords, t.Reason)
	}

	err = printResponseSummary(ctx, w, reader)
	if err != nil {
		return err
	}

	if !showRecords {
		return nil
	}

	records, total, err := reader.Query(ctx, datarecording.RecordTable,
		datarecording.QueryParams{OrderBy: "Seq", Limit: limit})
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SEQ\tTRIAL\tITERATION\tTICK\tIDENTITY\tCODE\tGROUP VARS")
	for _, r := range records {
		rec := r.(*datarecording.RecordRow)
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%#04x\t%s\n",
			rec.Seq, rec.Trial, rec.Iteration, rec.Tick, rec.Identity,
			rec.Code, rec.GroupVars)
	}

	if len(records) < total {
		fmt.Fprintf(w, "... %d more\n", total-len(records))
	}

	return nil
}

func printResponseSummary(
	ctx context.Context,
	w io.Writer,
	reader datarecording.DataReader,
) error {
	responses, _, err := reader.Query(ctx, datarecording.RecordTable,
		datarecording.QueryParams{
			Where: "Identity = ?",
			Args:  []any{responseName},
		})
	if err != nil {
		return err
	}

	if len(responses) == 0 {
		return nil
	}

	sum := 0
	for _, r := range responses {
		gvs, err := r.(*datarecording.RecordRow).GroupVarMap()
		if err != nil {
			return err
		}

		sum += gvs["rt"]
	}

	fmt.Fprintf(w, "\n%d responses, mean rt %.1f ticks\n",
		len(responses), float64(sum)/float64(len(responses)))

	return nil
}
