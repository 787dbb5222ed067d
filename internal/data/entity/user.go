package entity

type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleAdmin   UserRole = "admin"
)

type User struct {
	Base
	Name          string   `db:"name"`
	Email         string   `db:"email"`
	PasswordHash  string   `db:"password"`
	Phone         *string  `db:"phone"`
	Role          UserRole `db:"role"`
	WalletBalance float64  `db:"wallet_balance"`
	IsActive      bool     `db:"is_active"`
}
