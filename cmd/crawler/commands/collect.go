package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/user/odds-crawler/internal/usecase"
)

var collectDates dateFlags

var collectCmd = &cobra.Command{
	Use:   "collect <date...> | --from <date> [--to <date>]",
	Short: "Discovers the items of each date into its ledger without fetching details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dates, err := collectDates.resolve(args)
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

		results := make([]*usecase.CollectResult, 0, len(dates))
		for _, date := range dates {
			res, err := a.collector.Collect(cmd.Context(), date)
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
	collectDates.register(collectCmd)
	rootCmd.AddCommand(collectCmd)
}
