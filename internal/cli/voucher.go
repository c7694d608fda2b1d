package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vietddude/textchain/internal/infra/storage/postgres"
)

var voucherExpires time.Duration

var voucherCmd = &cobra.Command{
	Use:   "voucher",
	Short: "Manage redeemable vouchers",
}

var voucherAddCmd = &cobra.Command{
	Use:   "add [code] [usdc_amount]",
	Short: "Create a voucher that credits the given USDC amount",
	Args:  cobra.ExactArgs(2),
	Run:   runVoucherAdd,
}

func init() {
	voucherAddCmd.Flags().DurationVar(&voucherExpires, "expires", 0, "expire the voucher after this duration (0 = never)")
	voucherCmd.AddCommand(voucherAddCmd)
	rootCmd.AddCommand(voucherCmd)
}

func runVoucherAdd(cmd *cobra.Command, args []string) {
	// codes are matched against uppercased SMS text
	code := strings.ToUpper(strings.TrimSpace(args[0]))
	amount, err := decimal.NewFromString(args[1])
	if err != nil || !amount.IsPositive() {
		fmt.Printf("Invalid amount: %s\n", args[1])
		os.Exit(1)
	}

	var expiresAt *time.Time
	if voucherExpires > 0 {
		t := time.Now().Add(voucherExpires)
		expiresAt = &t
	}

	cfg := loadConfig()
	ctx := context.Background()
	db := openDB(ctx, cfg)
	defer func() {
		_ = db.Close()
	}()

	v, err := postgres.NewVoucherRepo(db).Create(ctx, code, amount, expiresAt)
	if err != nil {
		slog.Error("Failed to create voucher", "code", code, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Voucher %s created for $%s USDC\n", v.Code, v.USDCAmount.StringFixed(2))
}
