package pricing

// DefaultSchedule is the monthly per-bot price ladder that backs both the
// webhook processor and the public pricing endpoints. Amounts are USD cents.
func DefaultSchedule() Schedule {
	return Schedule{
		{UpTo: 1, UnitAmount: 1200},
		{UpTo: 5, UnitAmount: 2400},
		{UpTo: 50, UnitAmount: 2000},
		{UpTo: 200, UnitAmount: 1500},
		{UpTo: UpToInf, UnitAmount: 1000},
	}
}

func tierName(index int) string {
	names := []string{"MVP", "Startup", "Startup", "Growth", "Scale"}
	if index >= 0 && index < len(names) {
		return names[index]
	}
	return "Scale"
}

func tierDescription(index int) string {
	descriptions := []string{
		"For early products and sole users",
		"For small teams and growing vendors",
		"For small teams and growing vendors",
		"For mid-market tooling platforms",
	}
	if index >= 0 && index < len(descriptions) {
		return descriptions[index]
	}
	return "Professional tier"
}
