package commands

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/user/odds-crawler/pkg/utils"
)

type dateFlags struct {
	from string
	to   string
}

func (f *dateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "First date to crawl (YYYYMMDD or YYYY-MM-DD).")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date to crawl, inclusive. Defaults to --from.")
}

// resolve returns positional dates followed by the --from/--to span.
func (f *dateFlags) resolve(args []string) ([]string, error) {
	dates := make([]string, 0, len(args))
	for _, raw := range args {
		d, err := utils.NormalizeDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	if f.from == "" && f.to != "" {
		return nil, errors.New("--to requires --from")
	}
	if f.from != "" {
		to := f.to
		if to == "" {
			to = f.from
		}
		span, err := utils.DateRange(f.from, to)
		if err != nil {
			return nil, err
		}
		dates = append(dates, span...)
	}
	return dates, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
