package schema

// RoleSchema describes how to recognize a column of a given role. Keywords
// are matched against normalized column names in order.
type RoleSchema struct {
	Role        Role
	Required    bool
	Description string
	Keywords    []string
	ValueHints  []string
}

// Catalog is the role schema set in keyword-scanning order.
var Catalog = []RoleSchema{
	{
		Role:        RoleID,
		Description: "Unique customer identifier",
		Keywords:    []string{"id", "customer_id", "customerid", "user_id", "userid", "account"},
	},
	{
		Role:        RoleTarget,
		Required:    true,
		Description: "Churn indicator (target variable)",
		Keywords:    []string{"churn", "churned", "cancelled", "left", "attrition", "exit", "target"},
		ValueHints:  []string{"yes", "no", "0", "1", "true", "false"},
	},
	{
		Role:        RoleTenure,
		Required:    true,
		Description: "Duration of customer relationship",
		Keywords:    []string{"tenure", "months", "duration", "time", "age", "lifetime", "subscription_length"},
	},
	{
		Role:        RoleCostMonthly,
		Description: "Monthly/recurring charges",
		Keywords:    []string{"monthly", "charge", "fee", "price", "cost", "mrr", "recurring"},
	},
	{
		Role:        RoleCostTotal,
		Description: "Total cumulative charges",
		Keywords:    []string{"total", "cumulative", "lifetime_value", "ltv", "revenue"},
	},
	{
		Role:        RoleContract,
		Description: "Contract/commitment type",
		Keywords:    []string{"contract", "plan", "subscription", "commitment", "term"},
		ValueHints:  []string{"month-to-month", "one year", "two year", "annual", "monthly"},
	},
}

// RequiredRoles must be present for a dataset to be valid.
var RequiredRoles = []Role{RoleTarget, RoleTenure}

// RecommendedRoles are reported when absent; an error only in strict mode.
var RecommendedRoles = []Role{RoleCostMonthly, RoleContract}

// SemanticKeywords groups vocabulary for feature-family hints passed to
// semantic suggesters.
var SemanticKeywords = map[string][]string{
	"service":   {"service", "product", "feature", "addon", "add_on"},
	"internet":  {"internet", "broadband", "fiber", "dsl", "online"},
	"phone":     {"phone", "call", "mobile", "voice", "telephone"},
	"streaming": {"streaming", "tv", "movie", "video", "entertainment"},
	"security":  {"security", "protection", "backup", "support", "tech"},
	"gender":    {"gender", "sex"},
	"age":       {"age", "senior", "elderly", "young"},
	"family":    {"partner", "dependent", "family", "married", "spouse", "children"},
	"payment":   {"payment", "billing", "invoice", "method", "autopay"},
	"paperless": {"paperless", "electronic", "email", "digital"},
}

// Signal type identifiers.
const (
	SignalHighChurnProbability = "high_churn_probability"
	SignalHighCost             = "high_cost"
	SignalLowTenure            = "low_tenure"
	SignalNoCommitment         = "no_commitment"
	SignalMissingFeatures      = "missing_features"
)

// SignalDefinition is a static description of a churn signal.
type SignalDefinition struct {
	Type        string
	Description string
	Roles       []Role
	Percentile  float64
	Tier        Tier
}

// SignalDefinitions lists every signal the detector can raise.
var SignalDefinitions = []SignalDefinition{
	{
		Type:        SignalHighCost,
		Description: "Customer's cost is above the 75th percentile",
		Roles:       []Role{RoleCostMonthly, RoleCostTotal},
		Percentile:  75,
		Tier:        TierMedium,
	},
	{
		Type:        SignalLowTenure,
		Description: "Customer tenure is below the 25th percentile",
		Roles:       []Role{RoleTenure},
		Percentile:  25,
		Tier:        TierHigh,
	},
	{
		Type:        SignalNoCommitment,
		Description: "Customer has no long-term commitment",
		Roles:       []Role{RoleContract},
		Tier:        TierHigh,
	},
	{
		Type:        SignalHighChurnProbability,
		Description: "Model predicts high churn probability",
		Tier:        TierCritical,
	},
	{
		Type:        SignalMissingFeatures,
		Description: "Customer lacks popular value-added services",
		Roles:       []Role{RoleBinary},
		Tier:        TierMedium,
	},
}

// ActionTemplates are the base recommendation phrasings per signal type.
var ActionTemplates = map[string][]string{
	SignalHighCost: {
		"Consider offering a {discount_pct}% discount on monthly charges",
		"Propose a bundled package with better value",
		"Review pricing tier alignment with usage patterns",
	},
	SignalLowTenure: {
		"Initiate early engagement program",
		"Assign dedicated customer success representative",
		"Offer first-year loyalty bonus",
	},
	SignalNoCommitment: {
		"Promote benefits of annual subscription",
		"Offer incentive for contract upgrade",
		"Highlight long-term savings potential",
	},
	SignalHighChurnProbability: {
		"Immediate intervention required",
		"Schedule personal outreach call",
		"Offer retention package",
	},
	SignalMissingFeatures: {
		"Recommend value-added services: {missing_services}",
		"Offer trial period for additional features",
	},
}

var (
	catalogByRole map[Role]RoleSchema
	signalsByType map[string]SignalDefinition
)

func init() {
	catalogByRole = make(map[Role]RoleSchema, len(Catalog))
	for _, rs := range Catalog {
		catalogByRole[rs.Role] = rs
	}
	signalsByType = make(map[string]SignalDefinition, len(SignalDefinitions))
	for _, sd := range SignalDefinitions {
		signalsByType[sd.Type] = sd
	}
}

// Lookup returns the schema for a role. Roles outside the keyword catalog
// (categorical, binary, numeric) report false.
func Lookup(r Role) (RoleSchema, bool) {
	rs, ok := catalogByRole[r]
	return rs, ok
}

// Describe returns the catalog description of r, or the role name itself.
func Describe(r Role) string {
	if rs, ok := catalogByRole[r]; ok {
		return rs.Description
	}
	return string(r)
}

// LookupSignal returns the static definition for a signal type.
func LookupSignal(signalType string) (SignalDefinition, bool) {
	sd, ok := signalsByType[signalType]
	return sd, ok
}
