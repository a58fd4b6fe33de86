package models

import "time"

// SyncEvent is the payload pushed to the remote aggregator for every advance.
type SyncEvent struct {
	Student string    `json:"student"`
	CardID  string    `json:"cardId"`
	Unit    int       `json:"unit"`
	Rating  Outcome   `json:"rating"`
	DtMs    int64     `json:"dtMs"`
	Lang    Language  `json:"lang"`
	At      time.Time `json:"ts"`
}

// RemoteCardStat is the remote aggregator's view of one card.
type RemoteCardStat struct {
	Got      int   `json:"got"`
	Close    int   `json:"close"`
	Miss     int   `json:"miss"`
	Attempts int   `json:"attempts"`
	TimeMs   int64 `json:"timeMs"`
	TimeWeek int64 `json:"timeWeek"`
}

// RemoteStudent is the remote aggregator's summary of one student across devices.
type RemoteStudent struct {
	ByCard   map[string]RemoteCardStat `json:"byCard"`
	TimeEver int64                     `json:"timeEver"`
	TimeWeek int64                     `json:"timeWeek"`
}

// Totals derives the overlay totals of a remote summary.
func (s RemoteStudent) Totals() Totals {
	t := Totals{TimeEverMs: s.TimeEver, TimeWeekMs: s.TimeWeek}
	for _, c := range s.ByCard {
		if c.Attempts > 0 {
			t.CardsAttempted++
		}
	}
	return t
}

// Totals are the dashboard figures that may be overlaid with remote data.
type Totals struct {
	TimeEverMs     int64 `json:"timeEverMs"`
	TimeWeekMs     int64 `json:"timeWeekMs"`
	CardsAttempted int   `json:"cardsAttempted"`
}
