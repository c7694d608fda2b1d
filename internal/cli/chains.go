package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/textchain/internal/core/registry"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List the configured chains and their aliases",
	Run:   runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	reg := registry.FromConfig(cfg.Chains)

	providers := make(map[string]int, len(cfg.Chains))
	for _, c := range cfg.Chains {
		providers[c.Key] = len(c.Providers)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KEY\tNAME\tCHAIN ID\tNATIVE\tSTABLECOIN\tALIASES\tPROVIDERS")

	for _, c := range reg.List() {
		stable := "-"
		if c.Stablecoin != nil {
			stable = c.Stablecoin.Symbol
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n",
			c.Key, c.Name, c.ChainID, c.NativeSymbol, stable, strings.Join(c.Aliases, ","), providers[string(c.Key)])
	}
	_ = w.Flush()
}
