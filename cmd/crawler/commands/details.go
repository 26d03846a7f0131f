package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/internal/usecase"
)

var detailDates dateFlags

var detailsCmd = &cobra.Command{
	Use:   "details <date...> | --from <date> [--to <date>]",
	Short: "Fetches odds for items already collected into each date's ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := detailDates.resolve(args)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return errors.New("at least one date is required")
		}

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		results := make([]*usecase.RunResult, 0, len(dates))
		for _, date := range dates {
			res, err := a.details.Run(cmd.Context(), date)
			if errors.Is(err, repository.ErrLedgerNotFound) {
				a.log.Warn("No ledger for date, run collect first", "date", date)
				continue
			}
			if res != nil {
				results = append(results, res)
			}
			if err != nil {
				_ = printJSON(cmd.OutOrStdout(), results)
				return exitErr(err)
			}
		}
		return printJSON(cmd.OutOrStdout(), results)
	},
}

func init() {
	detailDates.register(detailsCmd)
	rootCmd.AddCommand(detailsCmd)
}
