package model

// VerifyFile is the outcome of checking one rom against the catalogs.
type VerifyFile struct {
	Path        string   `json:"path"`
	Size        int64    `json:"size"`
	HeaderSkip  uint64   `json:"header_skip,omitempty"`
	DataSize    uint64   `json:"data_size"`
	CRC32       string   `json:"crc32,omitempty"`
	SHA1        string   `json:"sha1,omitempty"`
	MD5         string   `json:"md5,omitempty"`
	Serial      string   `json:"serial,omitempty"`
	Title       string   `json:"title,omitempty"`
	Game        string   `json:"game,omitempty"`
	Region      string   `json:"region,omitempty"`
	MatchMethod string   `json:"match_method,omitempty"`
	Verdict     string   `json:"verdict,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type VerifyOutput struct {
	Platform  string       `json:"platform"`
	Dats      []string     `json:"dats"`
	Matched   int          `json:"matched"`
	Unmatched int          `json:"unmatched"`
	Failed    int          `json:"failed"`
	Files     []VerifyFile `json:"files"`
}
