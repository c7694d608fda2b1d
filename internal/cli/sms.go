package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vietddude/textchain/internal/control"
)

var smsFrom string

var smsCmd = &cobra.Command{
	Use:   "sms [text...]",
	Short: "Run one message through the command engine and print the reply",
	Args:  cobra.MinimumNArgs(1),
	Run:   runSMS,
}

func init() {
	smsCmd.Flags().StringVar(&smsFrom, "from", "", "sender phone number")
	_ = smsCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(smsCmd)
}

func runSMS(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	app, err := control.NewApp(ctx, cfg, control.Options{SkipMigrations: true})
	if err != nil {
		slog.Error("Failed to initialize TextChain", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	fmt.Println(app.Processor().Process(ctx, smsFrom, strings.Join(args, " ")))
}
