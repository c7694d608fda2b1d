package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vietddude/textchain/internal/core/command"
)

var parseCmd = &cobra.Command{
	Use:   "parse [text...]",
	Short: "Show how a message body is parsed",
	Args:  cobra.MinimumNArgs(1),
	Run:   runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) {
	parsed := command.Parse(strings.Join(args, " "))
	fmt.Println(command.Describe(parsed))
	if u, ok := parsed.(command.Unknown); ok && u.Hint != "" {
		fmt.Printf("Hint: %s\n", u.Hint)
	}
}
