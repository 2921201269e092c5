package api

import "time"

// v0 contains the public JSON report types printed by `teatime --json`.

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunReport describes one tea run.
type RunReport struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Status     RunStatus `json:"status" yaml:"status"`
	BoilPath   string    `json:"boil_path,omitempty" yaml:"boil_path,omitempty"`
	States     []string  `json:"states" yaml:"states"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

type WordCount struct {
	Word  string `json:"word" yaml:"word"`
	Count int    `json:"count" yaml:"count"`
}

// PageReport is the outcome of scraping one URL. A failed page has an Error
// and contributes no words.
type PageReport struct {
	URL         string `json:"url" yaml:"url"`
	TotalWords  int    `json:"total_words" yaml:"total_words"`
	UniqueWords int    `json:"unique_words" yaml:"unique_words"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ScrapeReport is the aggregated result of a scrape.
type ScrapeReport struct {
	Pages      []PageReport `json:"pages" yaml:"pages"`
	Top        []WordCount  `json:"top" yaml:"top"`
	DurationMS int64        `json:"duration_ms" yaml:"duration_ms"`
}
