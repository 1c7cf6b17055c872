package model

type RepairAction struct {
	Path       string `json:"path"`
	Game       string `json:"game"`
	Method     string `json:"method"`
	FillByte   string `json:"fill_byte"`
	BytesAdded uint64 `json:"bytes_added"`
}

type RepairFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type RepairReport struct {
	Platform       string          `json:"platform"`
	Dir            string          `json:"dir"`
	Applied        bool            `json:"applied"`
	AlreadyCorrect []string        `json:"already_correct"`
	Repairable     []RepairAction  `json:"repairable"`
	NoMatch        []string        `json:"no_match"`
	PlanErrors     []RepairFailure `json:"plan_errors,omitempty"`
	Repaired       int             `json:"repaired"`
	BackedUp       int             `json:"backed_up"`
	Failed         int             `json:"failed"`
	ExecErrors     []RepairFailure `json:"exec_errors,omitempty"`
}
