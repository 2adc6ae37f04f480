package repository

// UserSearchFilter constrains admin user listings.
type UserSearchFilter struct {
	Keyword string
	Role    string
	Enabled *bool
	Limit   int
	Offset  int
}

// ProductFilter constrains catalog listings. Name matches as a case-insensitive substring.
type ProductFilter struct {
	Name       string
	CategoryID *int64
	Limit      int
	Offset     int
}

// OrderFilter constrains order listings.
type OrderFilter struct {
	UserID *int64
	Status OrderStatus
	Limit  int
	Offset int
}
