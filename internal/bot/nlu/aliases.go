package nlu

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// budgetBracket is one row of the budgets table.  Bounds are in lakhs;
// a zero MinLakhs means open below, a zero MaxLakhs means open above.
type budgetBracket struct {
	Label    string   `yaml:"label"`
	MinLakhs float64  `yaml:"min_lakhs"`
	MaxLakhs float64  `yaml:"max_lakhs"`
	Aliases  []string `yaml:"aliases"`
}

// aliasTables is the parsed form of tables.yaml.
type aliasTables struct {
	Brands   map[string][]string `yaml:"brands"`
	CarTypes map[string][]string `yaml:"car_types"`
	Fuels    map[string][]string `yaml:"fuels"`
	Budgets  []budgetBracket     `yaml:"budgets"`
	Intents  map[string][]string `yaml:"intents"`

	// derived lookup maps, alias (lowercase) → canonical
	brandAlias   map[string]string
	carTypeAlias map[string]string
	fuelAlias    map[string]string
	budgetAlias  map[string]string

	// menu option lists in stable order
	brandOptions   []string
	carTypeOptions []string
	fuelOptions    []string
	budgetOptions  []string
}

var tables = mustLoadTables()

func mustLoadTables() *aliasTables {
	t := &aliasTables{}
	if err := yaml.Unmarshal(tablesYAML, t); err != nil {
		panic(fmt.Sprintf("nlu: parse embedded tables.yaml: %v", err))
	}

	t.brandAlias, t.brandOptions = buildAliasIndex(t.Brands)
	t.carTypeAlias, t.carTypeOptions = buildAliasIndex(t.CarTypes)
	t.fuelAlias, t.fuelOptions = buildAliasIndex(t.Fuels)

	t.budgetAlias = make(map[string]string)
	for _, b := range t.Budgets {
		t.budgetOptions = append(t.budgetOptions, b.Label)
		t.budgetAlias[strings.ToLower(b.Label)] = b.Label
		for _, a := range b.Aliases {
			t.budgetAlias[strings.ToLower(a)] = b.Label
		}
	}
	return t
}

// buildAliasIndex flattens a canonical→aliases map into an alias→canonical
// index.  Canonical names index themselves, so exact input always resolves.
// Option order follows tables.yaml via a second pass over the YAML node order
// being unavailable here; options are sorted by canonical name instead.
func buildAliasIndex(m map[string][]string) (map[string]string, []string) {
	idx := make(map[string]string)
	options := make([]string, 0, len(m))
	for canonical, aliases := range m {
		options = append(options, canonical)
		idx[strings.ToLower(canonical)] = canonical
		for _, a := range aliases {
			idx[strings.ToLower(a)] = canonical
		}
	}
	// Deterministic menu order.
	for i := 1; i < len(options); i++ {
		for j := i; j > 0 && options[j] < options[j-1]; j-- {
			options[j], options[j-1] = options[j-1], options[j]
		}
	}
	return idx, options
}

// BrandOptions returns the canonical brand menu.
func BrandOptions() []string { return append([]string(nil), tables.brandOptions...) }

// CarTypeOptions returns the canonical body-style menu.
func CarTypeOptions() []string { return append([]string(nil), tables.carTypeOptions...) }

// FuelOptions returns the canonical fuel-type menu.
func FuelOptions() []string { return append([]string(nil), tables.fuelOptions...) }

// BudgetOptions returns the budget brackets in ascending order.
func BudgetOptions() []string { return append([]string(nil), tables.budgetOptions...) }

// CanonicalBrand resolves free text to a canonical brand name.
func CanonicalBrand(s string) (string, bool) {
	v, ok := tables.brandAlias[normalizeKey(s)]
	return v, ok
}

// CanonicalCarType resolves free text to a canonical body style.
func CanonicalCarType(s string) (string, bool) {
	v, ok := tables.carTypeAlias[normalizeKey(s)]
	return v, ok
}

// CanonicalFuel resolves free text to a canonical fuel type.
func CanonicalFuel(s string) (string, bool) {
	v, ok := tables.fuelAlias[normalizeKey(s)]
	return v, ok
}

// CanonicalBudget resolves free text to a budget bracket label.  It accepts
// bracket labels, keyword aliases ("cheap", "premium"), and rupee amounts
// ("8 lakhs", "₹7,50,000") which map into the bracket containing the amount.
func CanonicalBudget(s string) (string, bool) {
	if v, ok := tables.budgetAlias[normalizeKey(s)]; ok {
		return v, true
	}
	if lakhs, ok := ParseLakhs(s); ok {
		return BudgetForLakhs(lakhs), true
	}
	return "", false
}

// BudgetForLakhs returns the bracket label whose bounds contain the amount.
func BudgetForLakhs(lakhs float64) string {
	for _, b := range tables.Budgets {
		if b.MinLakhs > 0 && lakhs < b.MinLakhs {
			continue
		}
		if b.MaxLakhs > 0 && lakhs >= b.MaxLakhs {
			continue
		}
		return b.Label
	}
	// Above every bounded bracket.
	return tables.Budgets[len(tables.Budgets)-1].Label
}

// BudgetBounds returns the rupee price bounds for a bracket label.  A zero
// bound means the bracket is open on that side.
func BudgetBounds(label string) (minRupees, maxRupees int64, ok bool) {
	for _, b := range tables.Budgets {
		if b.Label == label {
			return int64(b.MinLakhs * 100_000), int64(b.MaxLakhs * 100_000), true
		}
	}
	return 0, 0, false
}

var (
	lakhsRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:lakhs?|lacs?|l\b)`)
	rupeesRe = regexp.MustCompile(`(?:₹|rs\.?\s*|inr\s*)?([\d,]{5,})`)
)

// ParseLakhs extracts a rupee amount from text and returns it in lakhs.
// Understands "8 lakhs", "7.5 lacs", "8L", "₹8,00,000" and bare amounts of
// at least five digits.
func ParseLakhs(text string) (float64, bool) {
	if m := lakhsRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v, true
		}
	}
	if m := rupeesRe.FindStringSubmatch(text); m != nil {
		digits := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(digits, 64)
		if err == nil && v >= 10_000 {
			return v / 100_000, true
		}
	}
	return 0, false
}

// Canonicalize routes a raw entity value through the alias table for its
// key.  Free-form entities (name, location, model, ...) pass through with
// whitespace trimmed.  Returns ok=false when a closed-set entity cannot be
// resolved; such values are dropped rather than committed raw.
func Canonicalize(key, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	switch key {
	case EntityBrand:
		return CanonicalBrand(value)
	case EntityCarType:
		return CanonicalCarType(value)
	case EntityFuel:
		return CanonicalFuel(value)
	case EntityBudget:
		return CanonicalBudget(value)
	case EntityYear:
		if y, ok := parseYear(value); ok {
			return y, true
		}
		return "", false
	case EntityPhone:
		if p, ok := parsePhone(value); ok {
			return p, true
		}
		return "", false
	default:
		return value, true
	}
}

var yearRe = regexp.MustCompile(`\b(19[89]\d|20[0-4]\d)\b`)

func parseYear(s string) (string, bool) {
	if m := yearRe.FindString(s); m != "" {
		return m, true
	}
	return "", false
}

var phoneRe = regexp.MustCompile(`(?:\+91[\s-]?)?([6-9]\d{9})\b`)

func parsePhone(s string) (string, bool) {
	if m := phoneRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// normalizeKey lowercases and collapses interior whitespace so alias lookup
// is insensitive to spacing and case.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
