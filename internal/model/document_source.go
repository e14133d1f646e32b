package model

type SourceStatus string

const (
	SourceStatusPending    SourceStatus = "pending"
	SourceStatusProcessing SourceStatus = "processing"
	SourceStatusCompleted  SourceStatus = "completed"
	SourceStatusFailed     SourceStatus = "failed"
)

const SourceTypeYoutube = "youtube"

// CanTransition reports whether a source may move from one status to another.
// Status only moves forward: pending -> processing -> completed|failed.
func CanTransition(from, to SourceStatus) bool {
	switch from {
	case SourceStatusPending:
		return to == SourceStatusProcessing
	case SourceStatusProcessing:
		return to == SourceStatusCompleted || to == SourceStatusFailed
	}
	return false
}

func (s SourceStatus) Terminal() bool {
	return s == SourceStatusCompleted || s == SourceStatusFailed
}

type Attribution struct {
	SuppliedBy      string `json:"supplied_by"`
	SupplierType    string `json:"supplier_type"`
	SupplierEmail   string `json:"supplier_email"`
	LicenseType     string `json:"license_type"`
	CopyrightHolder string `json:"copyright_holder"`
}

type SourceMetadata struct {
	AccessTier AccessTier        `json:"access_tier"`
	Tags       []string          `json:"tags,omitempty"`
	Coaches    []string          `json:"coaches,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

type DocumentSource struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	SourceType    string         `json:"source_type"`
	ByteSize      int64          `json:"byte_size"`
	Status        SourceStatus   `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	LastProcessed int64          `json:"last_processed"`
	Attribution   Attribution    `json:"attribution"`
	Metadata      SourceMetadata `json:"metadata"`
	Ctime         int64          `json:"ctime"`
	Mtime         int64          `json:"mtime"`
}
