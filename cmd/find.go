package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chakmidlot/vabaclient/filter"
	"github.com/chakmidlot/vabaclient/vaba"
)

var (
	findFrom   string
	findDays   int
	findFilter string
	findMoveID int
)

// maxConcurrentQueries limits the parallel slot queries against the portal
const maxConcurrentQueries = 5

// findCmd represents the find command
var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Search upcoming dates for matching slots",
	Long: `Scan a range of dates for available slots, optionally filtered by an
expression, and optionally move an existing reservation to the first match.

Filter expressions see the slot's Timestamp, Count, Hour, Minute, Weekday
and Date, plus helpers like after("17:00") and onDate("2025-06-21"):

  vabactl find --days 14 --filter 'Weekday == "Saturday" && Hour >= 10'
  vabactl find --days 7 --filter 'Count > 3 && after("17:00")' --move 100500`,
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)

	findCmd.Flags().StringVar(&findFrom, "from", "", "first date to scan (YYYY-MM-DD, default today)")
	findCmd.Flags().IntVar(&findDays, "days", 7, "number of days to scan")
	findCmd.Flags().StringVarP(&findFilter, "filter", "f", "", "slot filter expression")
	findCmd.Flags().IntVar(&findMoveID, "move", 0, "reservation id to move to the first matching slot")
}

func runFind(cmd *cobra.Command, args []string) error {
	from := time.Now()
	if findFrom != "" {
		var err error
		from, err = time.Parse("2006-01-02", findFrom)
		if err != nil {
			return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", findFrom)
		}
	}
	if findDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	match := func(vaba.Slot) bool { return true }
	if findFilter != "" {
		var err error
		match, err = filter.CreateFilter(findFilter)
		if err != nil {
			return fmt.Errorf("invalid filter expression: %w", err)
		}
	}

	logger.Info().
		Str("from", from.Format("2006-01-02")).
		Int("days", findDays).
		Msg("Scanning for available slots")

	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)

	// Use mutex to protect concurrent writes
	var mu sync.Mutex
	var found []vaba.Slot

	for i := 0; i < findDays; i++ {
		day := from.AddDate(0, 0, i)
		g.Go(func() error {
			slots, err := client.AvailableSlots(ctx, day)
			if err != nil {
				return fmt.Errorf("failed to query %s: %w", day.Format("2006-01-02"), err)
			}

			mu.Lock()
			for _, slot := range slots {
				if match(slot) {
					found = append(found, slot)
				}
			}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Timestamp.Before(found[j].Timestamp)
	})

	if len(found) == 0 {
		fmt.Println("No matching slots found.")
		return nil
	}

	slotText := "slot"
	if len(found) != 1 {
		slotText = "slots"
	}
	fmt.Printf("\nFound %d matching %s:\n", len(found), slotText)
	fmt.Println(strings.Repeat("-", 40))
	for _, slot := range found {
		fmt.Printf("  %s  (%d free)\n", slot.Timestamp.Format("Mon, 02.01.2006 15:04"), slot.Count)
	}

	if findMoveID == 0 {
		return nil
	}

	target := found[0]
	fmt.Printf("\nMoving reservation %d to %s...\n", findMoveID, target.Timestamp.Format("2006-01-02 15:04"))

	if err := client.Reschedule(ctx, findMoveID, target.Timestamp); err != nil {
		return describeError(err)
	}

	fmt.Println("✓ Reservation moved")
	return nil
}
