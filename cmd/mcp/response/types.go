package response

// AccountInfo represents the identity the server runs as
type AccountInfo struct {
	Provider    string `json:"provider"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
}

// ServiceCost represents cost for a single service
type ServiceCost struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// CostInfo represents cost data for a time period
type CostInfo struct {
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Services  []ServiceCost `json:"services"`
	Total     float64       `json:"total"`
	Currency  string        `json:"currency"`
}

// Resource is one matched or remaining resource
type Resource struct {
	Service    string `json:"service"`
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	AccountID  string `json:"account_id"`
	Region     string `json:"region"`
}

// ServiceCount is the number of resources one destroyer matched
type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// Plan is what a destroy run would remove
type Plan struct {
	RunID           string           `json:"run_id"`
	Scope           string           `json:"scope"`
	Accounts        []string         `json:"accounts"`
	Regions         []string         `json:"regions"`
	Matched         int              `json:"matched"`
	ByService       []ServiceCount   `json:"by_service"`
	Resources       []Resource       `json:"resources"`
	SkippedAccounts []SkippedAccount `json:"skipped_accounts,omitempty"`
	Errors          []string         `json:"errors,omitempty"`
	ReportPath      string           `json:"report_path,omitempty"`
}

// SkippedAccount is an account the run could not enter
type SkippedAccount struct {
	AccountID string `json:"account_id"`
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
}

// Validation is the verdict of a read-only rescan
type Validation struct {
	Clean          bool       `json:"clean"`
	Stragglers     []Resource `json:"stragglers"`
	Accounts       []string   `json:"accounts_scanned"`
	Regions        []string   `json:"regions_scanned"`
	ScanErrors     []string   `json:"scan_errors,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
}

// LazyDelete is one entry of the tracking file
type LazyDelete struct {
	ID         string `json:"id"`
	Service    string `json:"service"`
	ResourceID string `json:"resource_id"`
	AccountID  string `json:"account_id"`
	Region     string `json:"region"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	RunID      string `json:"run_id"`
	UpdatedAt  string `json:"updated_at"`
}
