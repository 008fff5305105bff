package disclosure

import "time"

// Entity values MOPS uses in the disclosure tables.
const (
	EntityParent     = "本公司"
	EntitySubsidiary = "子公司"
)

// FundsLending is one lending-balance line, amounts in thousand TWD.
type FundsLending struct {
	Entity        string `json:"entity"`
	HasBalance    bool   `json:"has_balance"`
	CurrentMonth  *int64 `json:"current_month"`
	PreviousMonth *int64 `json:"previous_month"`
	MaxLimit      *int64 `json:"max_limit"`
}

// EndorsementGuarantee is one endorsement and guarantee line, amounts in
// thousand TWD.
type EndorsementGuarantee struct {
	Entity             string `json:"entity"`
	HasBalance         bool   `json:"has_balance"`
	MonthlyChange      *int64 `json:"monthly_change"`
	AccumulatedBalance *int64 `json:"accumulated_balance"`
	MaxLimit           *int64 `json:"max_limit"`
}

// CrossCompany is the guarantee balance between the parent and its
// subsidiaries, in both directions.
type CrossCompany struct {
	ParentToSubsidiary *int64 `json:"parent_to_subsidiary"`
	SubsidiaryToParent *int64 `json:"subsidiary_to_parent"`
}

// ChinaGuarantee is one guarantee line toward mainland China entities.
type ChinaGuarantee struct {
	Entity             string `json:"entity"`
	HasBalance         bool   `json:"has_balance"`
	MonthlyChange      *int64 `json:"monthly_change"`
	AccumulatedBalance *int64 `json:"accumulated_balance"`
}

// Response bundles every disclosure category for one company-month.
type Response struct {
	StockID     string `json:"stock_id"`
	CompanyName string `json:"company_name"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`

	FundsLending         []FundsLending         `json:"funds_lending"`
	EndorsementGuarantee []EndorsementGuarantee `json:"endorsement_guarantee"`
	CrossCompany         *CrossCompany          `json:"cross_company,omitempty"`
	ChinaGuarantee       []ChinaGuarantee       `json:"china_guarantee"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Query identifies one company-month disclosure lookup.
type Query struct {
	StockID string
	Year    int
	Month   int
	Market  string
}
