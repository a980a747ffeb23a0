package repository

import "time"

// User is the bundled example entity, stored in the users table.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Age       int       `db:"age" json:"age"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UsersTable declares the users table. name is unique and required.
var UsersTable = Table[User]{
	Name:            "users",
	IDColumn:        "id",
	Columns:         []string{"id", "name", "age", "created_at", "updated_at"},
	UpdatedAtColumn: "updated_at",
}

// UserStore is the record store for users.
type UserStore = Store[User, int64]
