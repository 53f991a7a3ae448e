package models

import "time"

type UserList struct {
	ID          string    `json:"id" gorm:"primaryKey;size:191"`
	OwnerID     string    `json:"owner_id" gorm:"not null;size:191;index"`
	Name        string    `json:"name" gorm:"not null;size:100"`
	Description string    `json:"description" gorm:"size:500"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UserListMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ListID    string    `json:"list_id" gorm:"not null;size:191;uniqueIndex:uk_user_list_members"`
	MemberID  string    `json:"member_id" gorm:"not null;size:191;uniqueIndex:uk_user_list_members;index"`
	CreatedAt time.Time `json:"created_at"`

	Member Profile `json:"-" gorm:"foreignKey:MemberID"`
}

// UserListWithCount is a list together with how many members it has.
type UserListWithCount struct {
	UserList
	MemberCount int64 `json:"member_count"`
}
