package models

// All lists every persisted model in dependency order. Used for SQLite
// auto-migration in development and tests; Postgres uses goose migrations.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&CartItem{},
		&WishlistItem{},
		&Page{},
		&Testimonial{},
		&Reel{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
