package db

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

type taskRecord struct {
	Title                string
	Description          string
	Category             string
	SuggestedTimeSeconds int
	JudgingCriteria      string
}

// LoadTaskLibrary reads tasks from a CSV and upserts them into the tasks
// table, keyed by title. Columns: title, description, category,
// suggested_time_seconds, judging_criteria.
func LoadTaskLibrary(conn *gorm.DB, path string) (int, error) {
	if conn == nil {
		return 0, nil
	}
	records, err := readTasks(path)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, record := range records {
		entry := Task{
			Title:                record.Title,
			Description:          record.Description,
			SuggestedTimeSeconds: record.SuggestedTimeSeconds,
		}
		if record.Category != "" {
			category := record.Category
			entry.Category = &category
		}
		if record.JudgingCriteria != "" {
			criteria := record.JudgingCriteria
			entry.JudgingCriteria = &criteria
		}
		if err := conn.Where(Task{Title: entry.Title}).Assign(entry).FirstOrCreate(&Task{}).Error; err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func readTasks(path string) ([]taskRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var records []taskRecord
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 2 {
			continue
		}
		record := taskRecord{
			Title:                strings.TrimSpace(row[0]),
			Description:          strings.TrimSpace(row[1]),
			SuggestedTimeSeconds: 180,
		}
		if record.Title == "" || record.Description == "" {
			continue
		}
		if len(row) > 2 {
			record.Category = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			if seconds, err := strconv.Atoi(strings.TrimSpace(row[3])); err == nil && seconds > 0 {
				record.SuggestedTimeSeconds = seconds
			}
		}
		if len(row) > 4 {
			record.JudgingCriteria = strings.TrimSpace(row[4])
		}
		records = append(records, record)
	}
	return records, nil
}
