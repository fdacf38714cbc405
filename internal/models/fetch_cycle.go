package models

import "time"

// FetchCycle represents the fetch_cycles table
type FetchCycle struct {
	ID         string    `gorm:"primaryKey;size:36"`
	StartedAt  time.Time `gorm:"column:started_at;index"`
	FinishedAt time.Time `gorm:"column:finished_at"`
	Latest     string    `gorm:"column:latest;size:15"`
	Fetched    int       `gorm:"column:fetched"`
	Reused     int       `gorm:"column:reused"`
	Outcome    string    `gorm:"column:outcome;size:32"`
	Error      string    `gorm:"column:error"`
}

func (FetchCycle) TableName() string { return "fetch_cycles" }
