package model

import "time"

// Finding is one retrieved fragment of restaurant knowledge.
type Finding struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Preferences extracted from a complex request.
type Preferences struct {
	Occasion string   `json:"occasion"`
	Budget   string   `json:"budget"`
	Diet     []string `json:"diet,omitempty"`
	Cuisine  []string `json:"cuisine,omitempty"`
}

type Recommendation struct {
	Item  string `json:"item"`
	Note  string `json:"note"`
	Price int64  `json:"price"`
}

// Investigation is the output of the investigator stage.
type Investigation struct {
	Query           string           `json:"query"`
	Findings        []Finding        `json:"findings"`
	Preferences     Preferences      `json:"preferences"`
	Recommendations []Recommendation `json:"recommendations"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ReportSnapshot summarizes the investigation a report was built from.
type ReportSnapshot struct {
	FindingsReviewed    int         `json:"findings_reviewed"`
	RecommendationCount int         `json:"recommendation_count"`
	Preferences         Preferences `json:"preferences"`
}

const ReportKindRecommendation = "recommendation"

// Report is an immutable entry of the session report log.
type Report struct {
	Timestamp       time.Time        `json:"timestamp"`
	Kind            string           `json:"kind"`
	Query           string           `json:"query"`
	Snapshot        ReportSnapshot   `json:"snapshot"`
	Recommendations []Recommendation `json:"recommendations"`
	Justification   string           `json:"justification"`
	NextAction      string           `json:"next_action"`
}

// Clone returns a copy of r that shares no slices with it.
func (r Report) Clone() Report {
	out := r
	out.Recommendations = append([]Recommendation(nil), r.Recommendations...)
	out.Snapshot.Preferences = r.Snapshot.Preferences.clone()
	return out
}

func (p Preferences) clone() Preferences {
	out := p
	out.Diet = append([]string(nil), p.Diet...)
	out.Cuisine = append([]string(nil), p.Cuisine...)
	return out
}
