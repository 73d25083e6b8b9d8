package protocol

// STEP (one per simulation step; logs, observer stream, index)
type StepMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Step            int    `json:"step"`
	State           string `json:"state"`
	PrevState       string `json:"prev_state"`
	From            [2]int `json:"from"`
	Pos             [2]int `json:"pos"`
	Moved           bool   `json:"moved"`
	Frontier        bool   `json:"frontier,omitempty"`
	PathLen         int    `json:"path_len"`
	Learned         int    `json:"learned"`
	Known           int    `json:"known"`
	Expanded        int    `json:"expanded"`
}

// SUMMARY (end of run)
type SummaryMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Seed            int64    `json:"seed"`
	Rows            int      `json:"rows"`
	Cols            int      `json:"cols"`
	SensorRange     int      `json:"sensor_range"`
	MaxSteps        int      `json:"max_steps"`
	Attempts        int      `json:"attempts"`
	Outcome         string   `json:"outcome"`
	Steps           int      `json:"steps"`
	History         [][2]int `json:"history"`
	KnownCells      int      `json:"known_cells"`
}

// SUBSCRIBE (observer client -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Every sends one STEP out of every N; 0 or 1 means all.
	Every int `json:"every,omitempty"`
}

// BootstrapResponse is served over plain HTTP before an observer subscribes.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Seed            int64  `json:"seed"`
	Rows            int    `json:"rows"`
	Cols            int    `json:"cols"`
	SensorRange     int    `json:"sensor_range"`
	MaxSteps        int    `json:"max_steps"`
	Step            int    `json:"step"`
	// Belief is the current internal map, RLE encoded row-major.
	Belief string `json:"belief"`
}
