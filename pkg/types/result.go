package types

// Result is the payload of one API agent tick.
type Result struct {
	Name    string         `json:"name"`
	Auth    bool           `json:"auth"`
	Targets []TargetResult `json:"targets"`
	Success bool           `json:"success"`
	Status  int            `json:"status"`
	Message string         `json:"message"`
}

// TargetResult captures the outcome of probing a single configured target.
type TargetResult struct {
	Name        string        `json:"name"`
	Success     bool          `json:"success"`
	Status      int           `json:"status"`
	Auth        bool          `json:"auth"`
	MatchResult []MatchResult `json:"match_result"`
	Message     string        `json:"message"`
}

// MatchResult is produced once per extracted keyword of a target.
type MatchResult struct {
	Keyword string `json:"keyword"`
	Found   bool   `json:"found"`
	Matched bool   `json:"matched"`
	Message string `json:"message"`
}
