package planbuilder

// SnackBand is the snack policy chosen from the remaining calorie budget.
type SnackBand int

const (
	SnackNone SnackBand = iota
	SnackOptional
	SnackLight
	SnackDish
)

// SnackBandFor maps remaining calories to a snack policy. It is total and monotonic in remaining.
func SnackBandFor(remaining float64) SnackBand {
	switch {
	case remaining <= 100:
		return SnackNone
	case remaining <= 200:
		return SnackOptional
	case remaining <= 300:
		return SnackLight
	default:
		return SnackDish
	}
}

func (b SnackBand) String() string {
	switch b {
	case SnackNone:
		return "none"
	case SnackOptional:
		return "optional"
	case SnackLight:
		return "light"
	default:
		return "dish"
	}
}

// Message is the text shown in the snack slot instead of a dish. It names no food so the
// sanitizer never has a reason to rewrite it. It is empty for SnackDish.
func (b SnackBand) Message() string {
	switch b {
	case SnackNone:
		return "No snack needed today, you are close to your calorie target"
	case SnackOptional:
		return "Optional light snack only if hungry, under 100 calories"
	case SnackLight:
		return "Light snack if needed, under 150 calories"
	}
	return ""
}

// instruction is the snack rule given to the generator.
func (b SnackBand) instruction() string {
	switch b {
	case SnackNone:
		return "Do not suggest a snack. Set the snack name to exactly: " + b.Message()
	case SnackOptional:
		return "Only an optional light snack under 100 calories. Set the snack name to exactly: " + b.Message()
	case SnackLight:
		return "Only a light snack under 150 calories if needed. Set the snack name to exactly: " + b.Message()
	}
	return "Suggest one concrete snack dish that fits the remaining budget."
}

// Portion qualifies a per-slot recommendation by how much budget is left.
type Portion int

const (
	PortionNormal Portion = iota
	PortionModerate
	PortionLight
)

// PortionQualifier applies the per-slot banding: under 200 light, under 300 moderate.
func PortionQualifier(remaining float64) Portion {
	switch {
	case remaining < 200:
		return PortionLight
	case remaining < 300:
		return PortionModerate
	default:
		return PortionNormal
	}
}

// Label is the display qualifier, empty for a normal portion.
func (p Portion) Label() string {
	switch p {
	case PortionLight:
		return "light portion"
	case PortionModerate:
		return "moderate portion"
	}
	return ""
}
