package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"streamdetect/internal/repository/sqlite"
	"streamdetect/internal/services/eventlog"

	"github.com/google/uuid"
)

func main() {
	logPath := flag.String("log", "detections.csv", "Detection log to import")
	dbPath := flag.String("db", "data/events.db", "Database path")
	runID := flag.String("run", "", "Run id to file the records under (random when empty)")
	flag.Parse()

	if *runID == "" {
		*runID = uuid.NewString()
	}

	fmt.Printf("Importing %s into database %s as run %s\n", *logPath, *dbPath, *runID)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	f, err := os.Open(*logPath)
	if err != nil {
		log.Fatalf("Failed to open detection log: %v", err)
	}
	defer f.Close()

	records, err := eventlog.ReadCSV(f)
	if err != nil {
		log.Fatalf("Failed to parse detection log: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("No records found to import")
		return
	}

	repo := sqlite.NewEventRepository(db)
	fmt.Printf("Inserting %d records into database...\n", len(records))
	if err := repo.InsertBatch(*runID, records); err != nil {
		log.Fatalf("Failed to insert records: %v", err)
	}
	fmt.Printf("✅ Successfully imported %d records\n", len(records))

	runs, err := repo.GetRunIDs()
	if err != nil {
		return
	}
	classes, err := repo.CountByClass()
	if err != nil {
		return
	}
	fmt.Printf("\n📊 Database Statistics:\n")
	fmt.Printf("   Runs: %d\n", len(runs))
	fmt.Printf("   Per class:\n")
	for class, count := range classes {
		fmt.Printf("      - %s: %d events\n", class, count)
	}
}
