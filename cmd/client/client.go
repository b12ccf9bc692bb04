package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"bourse/internal/common"
	bnet "bourse/internal/net"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	traderID   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "bourse-client",
	Short:        "Place orders and follow execution reports over the TCP gateway",
	SilenceUsage: true,
}

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Place one limit order per quantity, then print the reports for them",
	RunE:  runPlace,
}

var (
	ticker string
	side   string
	price  float64
	qtys   string
	wait   time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:9000", "address of the tcp gateway")
	rootCmd.PersistentFlags().StringVarP(&traderID, "trader", "t", "", "trader id (compulsory)")
	_ = rootCmd.MarkPersistentFlagRequired("trader")

	placeCmd.Flags().StringVar(&ticker, "ticker", "AAPL", "company symbol (max 8 chars)")
	placeCmd.Flags().StringVar(&side, "side", "buy", "order side: buy or sell")
	placeCmd.Flags().Float64Var(&price, "price", 100.0, "limit price")
	placeCmd.Flags().StringVar(&qtys, "qty", "10", "quantity or comma-separated list (e.g. 10,20,50)")
	placeCmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for reports after placing")

	rootCmd.AddCommand(placeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPlace(_ *cobra.Command, _ []string) error {
	orderSide, err := common.ParseSide(side)
	if err != nil {
		return err
	}
	quantities, err := parseQuantities(qtys)
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", serverAddr, traderID)

	for _, q := range quantities {
		raw, err := bnet.NewOrderMessage{
			Ticker:   ticker,
			Price:    price,
			Quantity: q,
			Side:     orderSide,
			TraderID: traderID,
		}.Serialize()
		if err != nil {
			return err
		}
		if err := bnet.WriteFrame(conn, raw); err != nil {
			return fmt.Errorf("failed to place order (qty %d): %w", q, err)
		}
		fmt.Printf("-> Sent %s order: %s %d @ %.2f\n", strings.ToUpper(side), ticker, q, price)
	}

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return readReports(conn)
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) ([]uint64, error) {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		val, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", p, err)
		}
		result = append(result, val)
	}
	return result, nil
}

// readReports prints reports until the connection closes or the read
// deadline passes.
func readReports(conn net.Conn) error {
	for {
		frame, err := bnet.ReadFrame(conn)
		if err != nil {
			var netErr net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		report, err := bnet.ParseReport(frame)
		if err != nil {
			return err
		}

		switch report.Type {
		case bnet.ErrorReport:
			fmt.Printf("[SERVER ERROR] %s\n", report.Err)
		case bnet.AckReport:
			fmt.Printf("[ACK] %s %s %d @ %.2f | order: %s\n",
				strings.ToUpper(report.Side.String()), report.Ticker, report.Quantity, report.Price, report.OrderID)
		case bnet.ExecutionReport:
			fmt.Printf("[EXECUTION] %s %s | qty: %d | price: %.2f | fee: %.4f | vs: %s | order: %s\n",
				strings.ToUpper(report.Side.String()), report.Ticker, report.Quantity, report.Price,
				report.Fee, report.Counterparty, report.OrderID)
		}
	}
}
