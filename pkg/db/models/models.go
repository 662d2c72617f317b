package models

// All lists every model with a table, in dependency order.
func All() []any {
	return []any{
		&CartSnapshot{},
		&OrderBump{},
		&UpsellProduct{},
	}
}
