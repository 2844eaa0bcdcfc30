package model

// Stats holds the headline figures of the location database
type Stats struct {
	MostCommonMissing string `json:"most_common_missing"`
	MostCommonExtra   string `json:"most_common_extra"`
	TopDonor          string `json:"top_donor"`
}

// CategoryShare is one segment of the redistributed food chart
type CategoryShare struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Impact summarises the transfers seen during a session
type Impact struct {
	Transfers          int             `json:"transfers"`
	ItemsRedistributed int             `json:"items_redistributed"`
	Categories         []CategoryShare `json:"categories"`
}
