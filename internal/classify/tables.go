package classify

// Department is one entry in the static department directory.
type Department struct {
	ID      string
	Name    string
	LogicID string
}

// UnassignedID is the department used when no classification signal fires.
const UnassignedID = "UNASSIGNED"

// DefaultDepartments returns the static department directory.
func DefaultDepartments() []Department {
	return []Department{
		{ID: "FIN001", Name: "Treasury", LogicID: "LG-TRS"},
		{ID: "FIN002", Name: "Financial Reporting", LogicID: "LG-FRP"},
		{ID: "ACC001", Name: "Accounts Payable", LogicID: "LG-AP"},
		{ID: "ACC002", Name: "Accounts Receivable", LogicID: "LG-AR"},
		{ID: "PAY001", Name: "Payroll", LogicID: "LG-PAY"},
		{ID: "TAX001", Name: "Tax", LogicID: "LG-TAX"},
		{ID: "OPS001", Name: "Fixed Assets", LogicID: "LG-FA"},
		{ID: "INV001", Name: "Inventory Control", LogicID: "LG-INV"},
		{ID: UnassignedID, Name: "Unassigned", LogicID: "LG-UNA"},
	}
}

// DefaultSynonyms maps free-form department hints to directory ids.
// Keys are matched case-insensitively after trimming.
func DefaultSynonyms() map[string]string {
	return map[string]string{
		"treasury ops":       "FIN001",
		"cash management":    "FIN001",
		"reporting":          "FIN002",
		"fin reporting":      "FIN002",
		"ap":                 "ACC001",
		"payables":           "ACC001",
		"ar":                 "ACC002",
		"receivables":        "ACC002",
		"hr payroll":         "PAY001",
		"compensation":       "PAY001",
		"taxation":           "TAX001",
		"vat":                "TAX001",
		"capex":              "OPS001",
		"ppe":                "OPS001",
		"stock":              "INV001",
		"warehouse":          "INV001",
	}
}

// HistoricalEntry is a known prior-period department assignment for an
// exact account number. Confidence of 0 falls back to the table default.
type HistoricalEntry struct {
	DepartmentID string
	Confidence   float64
}

// DefaultHistoricalConfidence applies when a historical entry carries no
// explicit confidence.
const DefaultHistoricalConfidence = 0.95

// DefaultHistorical returns the fixed historical mapping table.
func DefaultHistorical() map[string]HistoricalEntry {
	return map[string]HistoricalEntry{
		"101000": {DepartmentID: "FIN001", Confidence: 0.96},
		"102000": {DepartmentID: "FIN001", Confidence: 0.96},
		"110500": {DepartmentID: "ACC002", Confidence: 0.93},
		"120300": {DepartmentID: "INV001"},
		"150000": {DepartmentID: "OPS001", Confidence: 0.94},
		"201000": {DepartmentID: "ACC001", Confidence: 0.97},
		"210400": {DepartmentID: "PAY001"},
		"230100": {DepartmentID: "TAX001", Confidence: 0.92},
		"301000": {DepartmentID: "FIN002", Confidence: 0.95},
	}
}

// Rule is one ordered classification rule. Patterns are regular expressions
// tested against the account number; keywords are substrings tested
// case-insensitively against the account name.
type Rule struct {
	Name         string
	DepartmentID string
	Patterns     []string
	Keywords     []string
	BaseWeight   float64
}

// DefaultRules returns the fixed ordered rule list. Earlier rules win score
// ties, so the ordering here is load-bearing.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:         "Cash and bank",
			DepartmentID: "FIN001",
			Patterns:     []string{`^10[0-9]{4}$`, `^11[0-4][0-9]{3}$`},
			Keywords:     []string{"cash", "bank", "deposit", "money market"},
			BaseWeight:   0.50,
		},
		{
			Name:         "Trade receivables",
			DepartmentID: "ACC002",
			Patterns:     []string{`^11[5-9][0-9]{3}$`, `^12[0-9]{4}$`},
			Keywords:     []string{"receivable", "debtor", "customer"},
			BaseWeight:   0.45,
		},
		{
			Name:         "Inventory",
			DepartmentID: "INV001",
			Patterns:     []string{`^13[0-9]{4}$`},
			Keywords:     []string{"inventory", "stock", "raw material", "finished goods"},
			BaseWeight:   0.45,
		},
		{
			Name:         "Fixed assets and depreciation",
			DepartmentID: "OPS001",
			Patterns:     []string{`^1[5-7][0-9]{4}$`},
			Keywords:     []string{"equipment", "property", "depreciation", "asset"},
			BaseWeight:   0.42,
		},
		{
			Name:         "Trade payables",
			DepartmentID: "ACC001",
			Patterns:     []string{`^20[0-9]{4}$`, `^21[0-3][0-9]{3}$`},
			Keywords:     []string{"payable", "vendor", "supplier", "accrual"},
			BaseWeight:   0.45,
		},
		{
			Name:         "Payroll liabilities",
			DepartmentID: "PAY001",
			Patterns:     []string{`^21[4-9][0-9]{3}$`},
			Keywords:     []string{"payroll", "salary", "wages", "benefits", "pension"},
			BaseWeight:   0.44,
		},
		{
			Name:         "Tax accounts",
			DepartmentID: "TAX001",
			Patterns:     []string{`^23[0-9]{4}$`},
			Keywords:     []string{"tax", "vat", "gst", "withholding"},
			BaseWeight:   0.44,
		},
		{
			Name:         "Equity and reserves",
			DepartmentID: "FIN002",
			Patterns:     []string{`^3[0-9]{5}$`},
			Keywords:     []string{"equity", "capital", "retained earnings", "reserve"},
			BaseWeight:   0.40,
		},
		{
			Name:         "Revenue",
			DepartmentID: "FIN002",
			Patterns:     []string{`^4[0-9]{5}$`},
			Keywords:     []string{"revenue", "sales", "income"},
			BaseWeight:   0.38,
		},
		{
			Name:         "Operating expense",
			DepartmentID: "ACC001",
			Patterns:     []string{`^[5-6][0-9]{5}$`},
			Keywords:     []string{"expense", "cost", "fees", "utilities"},
			BaseWeight:   0.35,
		},
	}
}
