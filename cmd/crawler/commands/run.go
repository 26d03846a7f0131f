package commands

import (
	"github.com/spf13/cobra"

	"github.com/user/odds-crawler/internal/usecase"
)

var runDates dateFlags

var runCmd = &cobra.Command{
	Use:   "run [date...] [--from <date> [--to <date>]]",
	Short: "Collects and fetches details for each date, or drains the date queue when none is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := runDates.resolve(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		var summaries []usecase.DateSummary
		if len(dates) == 0 {
			summaries, err = a.orchestrator.RunQueue(cmd.Context())
		} else {
			summaries, err = a.orchestrator.Run(cmd.Context(), dates)
		}
		if perr := printJSON(cmd.OutOrStdout(), summaries); perr != nil {
			a.log.Warn("Failed to print summaries", "error", perr)
		}
		return exitErr(err)
	},
}

func init() {
	runDates.register(runCmd)
	rootCmd.AddCommand(runCmd)
}
