package types

// Level is the severity attached to a shipped envelope.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Priority string

const PriorityLow Priority = "low"

// Envelope is the standard wrapper posted to the collector for every agent report.
type Envelope struct {
	BatchID  string   `json:"batch_id"`
	Identity Identity `json:"identity"`
	Time     int64    `json:"time"`
	Level    Level    `json:"level"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
	Content  string   `json:"content"`
	RawData  any      `json:"raw_data"`
	Remark   string   `json:"remark"`
	Priority Priority `json:"priority"`
	Env      string   `json:"env"`
	Source   Source   `json:"source"`
}

// Identity ties an envelope to the customer, project and host it describes.
type Identity struct {
	CustomerID string `json:"customer_id"`
	ProjectID  string `json:"project_id"`
	TargetIP   string `json:"target_ip"`
}

// Source describes the agent that produced an envelope.
type Source struct {
	From    string `json:"from"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Lang    string `json:"lang"`
	IP      string `json:"ip"`
}
