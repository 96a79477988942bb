// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Email        string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name         string   `json:"name" gorm:"size:120;not null"`
	PasswordHash string   `json:"-" gorm:"size:255;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;index"`
	// MaxStudents is the upper bound a professor may set as the student limit
	// of any supervision session they open. Zero for students.
	MaxStudents int        `json:"max_students,omitempty" gorm:"not null;default:0"`
	ProfileData JSONB      `json:"profile_data,omitempty" gorm:"type:jsonb"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Relationships
	Sessions     []Session     `json:"sessions,omitempty" gorm:"foreignKey:ProfessorID"`
	Applications []Application `json:"applications,omitempty" gorm:"foreignKey:StudentID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

func (u *User) IsProfessor() bool {
	return u.Role == UserRoleProfessor
}

func (u *User) IsStudent() bool {
	return u.Role == UserRoleStudent
}
