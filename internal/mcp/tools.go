package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Index  string `json:"index" jsonschema:"name of the mirrored index to search"`
	Query  string `json:"query,omitempty" jsonschema:"full-text query; empty lists records in ID order"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of hits, default from configuration"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of hits to skip for paging"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Index   string      `json:"index"`
	Query   string      `json:"query"`
	Total   int         `json:"total" jsonschema:"number of matching records"`
	TookMs  int64       `json:"took_ms"`
	Backend string      `json:"backend"`
	Hits    []HitOutput `json:"hits" jsonschema:"matching records, best first"`
}

// HitOutput is one matching record.
type HitOutput struct {
	ID           string         `json:"objectID" jsonschema:"record identifier"`
	Score        float64        `json:"score" jsonschema:"relevance score, higher is better"`
	Fields       map[string]any `json:"fields" jsonschema:"record fields as mirrored"`
	MatchedTerms []string       `json:"matched_terms,omitempty" jsonschema:"query terms that matched this record"`
}

// BuildInput defines the input schema for the build tool.
type BuildInput struct {
	Index    string `json:"index" jsonschema:"name of the index to build"`
	Source   string `json:"source" jsonschema:"path to a JSON array or NDJSON file of records"`
	Mirrored bool   `json:"mirrored,omitempty" jsonschema:"keep the index refreshed when its source changes"`
	Wait     bool   `json:"wait,omitempty" jsonschema:"wait for the build to finish before returning"`
}

// BuildOutput defines the output schema for the build tool.
type BuildOutput struct {
	Index     string `json:"index"`
	Task      uint64 `json:"task" jsonschema:"build lane task number"`
	Status    string `json:"status" jsonschema:"queued or done"`
	Bootstrap string `json:"bootstrap" jsonschema:"bootstrap phase after the call: idle, in_progress or finished"`
	Documents int    `json:"documents,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// IndexStatusInput defines the input schema for the index_status tool.
type IndexStatusInput struct {
	Index string `json:"index,omitempty" jsonschema:"limit the report to one index"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	OfflineEnabled bool        `json:"offline_enabled" jsonschema:"whether the local engine is activated"`
	Backend        string      `json:"backend"`
	RootDir        string      `json:"root_dir"`
	Indices        []IndexInfo `json:"indices"`
	Lanes          []LaneInfo  `json:"lanes"`
}

// IndexInfo describes one loaded index.
type IndexInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind" jsonschema:"mirrored or plain"`
	Mirrored   bool   `json:"mirrored"`
	Offline    bool   `json:"offline" jsonschema:"true when searches are served from local data"`
	Bootstrap  string `json:"bootstrap,omitempty"`
	Runs       int    `json:"runs,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	FinishedAt string `json:"finished_at,omitempty" jsonschema:"RFC3339 time the last bootstrap finished"`
	Source     string `json:"source,omitempty"`
	OnDisk     string `json:"on_disk,omitempty" jsonschema:"backend of the data found on disk"`
}

// LaneInfo describes one work lane.
type LaneInfo struct {
	Kind      string `json:"kind" jsonschema:"build or search"`
	Queued    int    `json:"queued"`
	Running   string `json:"running,omitempty"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Cancelled uint64 `json:"cancelled"`
}
