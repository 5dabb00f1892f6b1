package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/finplay/settlement/internal/models"
)

// Exports audit logs and ledger entries into a single workbook for
// compliance review. Run against the production replica, not the primary.
func main() {
	out := flag.String("out", "settlement_export.xlsx", "output workbook path")
	days := flag.Int("days", 30, "how many days back to export")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -*days)

	f := excelize.NewFile()
	defer f.Close()

	if err := writeAuditSheet(db, f, since); err != nil {
		log.Fatal("audit export failed:", err)
	}
	if err := writeLedgerSheet(db, f, since); err != nil {
		log.Fatal("ledger export failed:", err)
	}

	// Drop the default sheet excelize creates.
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(*out); err != nil {
		log.Fatal("failed to save workbook:", err)
	}
	fmt.Printf("Export written to %s\n", *out)
}

func writeAuditSheet(db *gorm.DB, f *excelize.File, since time.Time) error {
	const sheet = "Audit Logs"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Log ID", "Timestamp (UTC)", "Actor ID", "Actor Name", "Action", "Resource Type", "Resource ID", "Details"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	var logs []models.AuditLog
	if err := db.Where("created_at >= ?", since).Order("created_at ASC").Find(&logs).Error; err != nil {
		return err
	}

	for i, l := range logs {
		details := ""
		if len(l.Details) > 0 {
			b, _ := json.Marshal(l.Details)
			details = string(b)
		}
		row := i + 2
		values := []interface{}{l.ID, l.CreatedAt.UTC().Format(time.RFC3339), l.ActorID, l.ActorName, l.Action, l.ResourceType, l.ResourceID, details}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	fmt.Printf("Exported %d audit logs\n", len(logs))
	return nil
}

func writeLedgerSheet(db *gorm.DB, f *excelize.File, since time.Time) error {
	const sheet = "Ledger Entries"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Entry ID", "Timestamp (UTC)", "User ID", "Kind", "Delta", "Balance After", "Reference Type", "Reference ID", "Description"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	var entries []models.LedgerEntry
	if err := db.Where("created_at >= ?", since).Order("created_at ASC").Find(&entries).Error; err != nil {
		return err
	}

	for i, e := range entries {
		row := i + 2
		// Amounts go out as fixed-point strings to keep Excel from
		// mangling them into floats.
		values := []interface{}{
			e.ID, e.CreatedAt.UTC().Format(time.RFC3339), e.UserID, e.Kind,
			e.Delta.StringFixed(2), e.BalanceAfter.StringFixed(2),
			e.ReferenceType, e.ReferenceID, e.Description,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	fmt.Printf("Exported %d ledger entries\n", len(entries))
	return nil
}
