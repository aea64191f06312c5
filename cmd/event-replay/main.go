package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
)

// Operator tool to replay failed events. An event that exhausted its retry
// budget stays FAILED with no next attempt; this resets its dispatch
// bookkeeping so the dispatcher claims it again. The fold itself is
// idempotent, so replaying an event that partially applied is safe.
func main() {
	storeID := flag.String("store-id", "", "Restrict replay to one store (uuid)")
	eventID := flag.String("event-id", "", "Replay a single event (uuid)")
	dryRun := flag.Bool("dry-run", true, "List matching events only (no writes)")
	confirm := flag.String("confirm", "", "Type REPLAY to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*storeID) == "" && strings.TrimSpace(*eventID) == "" {
		fmt.Fprintln(os.Stderr, "--store-id or --event-id is required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "REPLAY" {
		fmt.Fprintln(os.Stderr, "set --confirm=REPLAY to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	query := db.Model(&models.EventRecord{}).
		Where("projection_status = ?", models.ProjectionStatusFailed)
	if strings.TrimSpace(*storeID) != "" {
		query = query.Where("store_id = ?", *storeID)
	}
	if strings.TrimSpace(*eventID) != "" {
		query = query.Where("id = ?", *eventID)
	}

	if *dryRun {
		printMatches(query)
		return
	}

	res := query.Updates(map[string]interface{}{
		"projection_status": models.ProjectionStatusPending,
		"projection_error":  nil,
		"attempts":          0,
		"next_attempt_at":   nil,
		"locked_at":         nil,
		"locked_by":         nil,
	})
	if res.Error != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", res.Error)
		os.Exit(1)
	}
	fmt.Printf("✓ Reset %d event(s) to pending\n", res.RowsAffected)
}

func printMatches(query *gorm.DB) {
	var events []models.EventRecord
	if err := query.Order("created_at ASC").Limit(200).Find(&events).Error; err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Println("No failed events match")
		return
	}
	fmt.Printf("Will replay %d event(s):\n", len(events))
	for _, ev := range events {
		errMsg := ""
		if ev.ProjectionError != nil {
			errMsg = *ev.ProjectionError
		}
		fmt.Printf("  id=%s store=%s type=%s attempts=%d error=%q\n",
			ev.ID, ev.StoreId, ev.Type, ev.Attempts, errMsg)
	}
}
