package models

import "time"

// User represents a login identity
type User struct {
	ID           uint   `gorm:"primarykey;column:id" json:"id"`
	Username     string `gorm:"column:username;not null;unique" json:"username"`
	Email        string `gorm:"column:email;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	BaseModel
}

// TableName sets the table name for GORM
func (User) TableName() string {
	return "users"
}

// MemberProfile represents the role and contact record linked 1:1 to a login identity
type MemberProfile struct {
	ID           uint      `gorm:"primarykey;column:id" json:"id"`
	UserID       uint      `gorm:"column:user_id;not null;unique" json:"userId"`
	Role         Role      `gorm:"column:role;not null;default:Member" json:"role"`
	MembershipID string    `gorm:"column:membership_id;not null;unique" json:"membershipId"`
	Phone        string    `gorm:"column:phone" json:"phone"`
	Address      string    `gorm:"column:address" json:"address"`
	RollNo       string    `gorm:"column:roll_no" json:"rollNo"`
	Department   string    `gorm:"column:department" json:"department"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	JoinedDate   time.Time `gorm:"column:joined_date;not null" json:"joinedDate"`
	BaseModel

	// Relationships
	User User `gorm:"foreignKey:UserID;references:ID" json:"user"`
}

// TableName sets the table name for GORM
func (MemberProfile) TableName() string {
	return "member_profiles"
}
