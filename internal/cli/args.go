package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cuidar/medstock/internal/storage"
)

func exactlyOneID(what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("%s requires exactly one %s id", cmd.CommandPath(), what)
		}
		return nil
	}
}

func parseID(what, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

func parseDateFlag(flag, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	date, err := storage.ParseDate(raw)
	if err != nil {
		return nil, usageErrorf("--%s must be a YYYY-MM-DD date", flag)
	}
	return &date, nil
}

func parsePriceFlag(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, usageErrorf("--price must be a decimal number")
	}
	return price, nil
}

// changedInt returns a pointer to value only when the flag was set.
func changedInt(cmd *cobra.Command, flag string, value int) *int {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	v := value
	return &v
}

func changedString(cmd *cobra.Command, flag string, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	v := value
	return &v
}

func noPositionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return usageErrorf("%s does not accept positional arguments", cmd.CommandPath())
	}
	return nil
}
