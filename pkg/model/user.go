package model

import "time"

// Role names seeded into every tenant database.
const (
	RoleSuperAdmin  = "super_admin"
	RoleSchoolAdmin = "school_admin"
	RoleTeacher     = "teacher"
	RoleStudent     = "student"
	RoleParent      = "parent"
	RoleAccountant  = "accountant"
	RoleLibrarian   = "librarian"
)

// Role is a tenant-local role.
type Role struct {
	ID          int64  `gorm:"column:id;primaryKey" json:"id"`
	Name        string `gorm:"column:name" json:"name"`
	DisplayName string `gorm:"column:display_name" json:"display_name"`
	Description string `gorm:"column:description" json:"description"`
	IsSystem    bool   `gorm:"column:is_system" json:"is_system"`
}

func (Role) TableName() string {
	return "roles"
}

// User is a tenant-local account.
type User struct {
	ID           int64     `gorm:"column:id;primaryKey" json:"id"`
	RoleID       int64     `gorm:"column:role_id" json:"role_id"`
	Name         string    `gorm:"column:name" json:"name"`
	Email        string    `gorm:"column:email" json:"email"`
	Phone        string    `gorm:"column:phone" json:"phone"`
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	Status       string    `gorm:"column:status" json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
