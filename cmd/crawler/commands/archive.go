package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/user/odds-crawler/internal/adapter/filestore"
)

var (
	archiveDates dateFlags
	archiveForce bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive <date...> | --from <date> [--to <date>]",
	Short: "Bundles each date's detail records into one tar of gzipped records.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := archiveDates.resolve(args)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return errors.New("at least one date is required")
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		results := make([]*filestore.ArchiveResult, 0, len(dates))
		for _, date := range dates {
			res, err := a.records.Archive(cmd.Context(), date, archiveForce)
			if err != nil {
				_ = printJSON(cmd.OutOrStdout(), results)
				return exitErr(err)
			}
			a.log.Info("Date archived", "date", date, "status", string(res.Status),
				"files", res.Files, "bytes_before", res.BytesBefore, "bytes_after", res.BytesAfter)
			results = append(results, res)
		}
		return printJSON(cmd.OutOrStdout(), results)
	},
}

func init() {
	archiveDates.register(archiveCmd)
	archiveCmd.Flags().BoolVar(&archiveForce, "force", false, "Merge loose records into an existing archive.")
	rootCmd.AddCommand(archiveCmd)
}
