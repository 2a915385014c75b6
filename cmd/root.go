package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chakmidlot/vabaclient/config"
	"github.com/chakmidlot/vabaclient/vaba"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	client  *vaba.Client

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vabactl",
	Short: "Manage wellness reservations from the command line",
	Long: `vabactl talks to the wellness booking portal: it lists available
time slots, shows your active reservations and moves an existing
reservation to a new slot.

Credentials come from the config file or the VABA_AUTH_USERNAME and
VABA_AUTH_PASSWORD environment variables.`,
	PersistentPreRunE: initializeApp,
}

// SetVersion sets the version information shown by --version
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", v, bt)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(reservationsCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(testCmd)
}

// initializeApp initializes the configuration and the portal client
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	opts := []vaba.Option{
		vaba.WithArticleID(cfg.Booking.ArticleID),
		vaba.WithPartySize(cfg.Booking.PartySize),
		vaba.WithTimeout(time.Duration(cfg.Booking.Timeout) * time.Second),
	}
	if cfg.Booking.URL != "" {
		opts = append(opts, vaba.WithBaseURL(cfg.Booking.URL))
	}

	client, err = vaba.NewClient(cfg.Auth.Username, cfg.Auth.Password, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create portal client: %w", err)
	}

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format; color only when stderr is a terminal
	noColor := !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd())

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// slotsCmd represents the slots command
var slotsCmd = &cobra.Command{
	Use:   "slots <date>",
	Short: "List available time slots for a date",
	Long:  `List the bookable time slots and their remaining capacity on the given date (YYYY-MM-DD).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSlots,
}

func runSlots(cmd *cobra.Command, args []string) error {
	day, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[0])
	}

	ctx := context.Background()
	slots, err := client.AvailableSlots(ctx, day)
	if err != nil {
		return err
	}

	if len(slots) == 0 {
		fmt.Println("No slots available on this date.")
		return nil
	}

	fmt.Printf("\nAvailable slots on %s:\n", day.Format("2006-01-02"))
	fmt.Println(strings.Repeat("-", 40))
	for _, slot := range slots {
		fmt.Printf("  %s  (%d free)\n", slot.Timestamp.Format("15:04"), slot.Count)
	}

	return nil
}

// reservationsCmd represents the reservations command
var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "List your active reservations",
	Long:  `List your current bookings with their reservation ids, sorted by time.`,
	RunE:  runReservations,
}

func runReservations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reservations, err := client.ActiveReservations(ctx)
	if err != nil {
		return describeError(err)
	}

	if len(reservations) == 0 {
		fmt.Println("No active reservations.")
		return nil
	}

	fmt.Printf("\nActive reservations:\n")
	fmt.Println(strings.Repeat("-", 40))
	for _, reservation := range reservations {
		fmt.Printf("  #%d  %s\n", reservation.ID, reservation.Timestamp.Format("Mon, 02.01.2006 15:04"))
	}

	return nil
}

// moveCmd represents the move command
var moveCmd = &cobra.Command{
	Use:   "move <reservation-id> <date> <time>",
	Short: "Reschedule a reservation to a new slot",
	Long: `Move an existing reservation to a new time. The reservation keeps its id.

Example:
  vabactl move 100500 2025-03-04 12:40`,
	Args: cobra.ExactArgs(3),
	RunE: runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid reservation id %q", args[0])
	}

	ts, err := time.Parse("2006-01-02 15:04", args[1]+" "+args[2])
	if err != nil {
		return fmt.Errorf("invalid slot %q: expected YYYY-MM-DD HH:MM", args[1]+" "+args[2])
	}

	ctx := context.Background()
	if err := client.Reschedule(ctx, id, ts); err != nil {
		return describeError(err)
	}

	fmt.Printf("✓ Reservation %d moved to %s\n", id, ts.Format("2006-01-02 15:04"))
	return nil
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the portal connection and credentials",
	Long:  `Log in to the portal once to verify the configured credentials.`,
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	fmt.Println("Testing portal login...")

	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		return describeError(err)
	}

	fmt.Println("✓ Login successful!")

	reservations, err := client.ActiveReservations(ctx)
	if err != nil {
		return describeError(err)
	}

	fmt.Printf("- Active reservations: %d\n", len(reservations))
	return nil
}

// describeError maps the client error taxonomy to actionable messages
func describeError(err error) error {
	switch {
	case errors.Is(err, vaba.ErrWrongCredentials):
		return fmt.Errorf("login rejected: check auth.username and auth.password")
	case errors.Is(err, vaba.ErrNotAuthorized):
		return fmt.Errorf("the portal keeps rejecting the session; try again later")
	case errors.Is(err, vaba.ErrReservationNotFound):
		return fmt.Errorf("reservation not found (or no permission to move it)")
	case errors.Is(err, vaba.ErrTimeSlotUnavailable):
		return fmt.Errorf("the requested slot is no longer available")
	}
	return err
}
