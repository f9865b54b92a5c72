package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:student"` // student, tutor, admin
	FullName     string
	Bio          string
	LastActive   time.Time
}

// Actor is the authenticated caller every core operation receives.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsTutor() bool {
	return a.Role == RoleTutor
}

func (a Actor) IsStudent() bool {
	return a.Role == RoleStudent
}
