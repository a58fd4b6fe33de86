package models

// Badge is an achievement threshold. Both the minutes and the card count must
// be reached.
type Badge struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
	Cards   int    `json:"cards"`
}

// BadgeProgress reports one threshold against a student's totals.
type BadgeProgress struct {
	Badge
	Met        bool `json:"met"`
	Celebrated bool `json:"celebrated"`
}
