package models

import "time"

// Friendship is stored once per pair with User1ID < User2ID.
type Friendship struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	User1ID   uint      `gorm:"not null;uniqueIndex:idx_friend_pair;index" json:"user1_id"`
	User2ID   uint      `gorm:"not null;uniqueIndex:idx_friend_pair;index" json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFriendship orders the pair.
func NewFriendship(a, b uint) Friendship {
	if a > b {
		a, b = b, a
	}
	return Friendship{User1ID: a, User2ID: b}
}

// Other returns the friend of userID in this pair.
func (f Friendship) Other(userID uint) uint {
	if f.User1ID == userID {
		return f.User2ID
	}
	return f.User1ID
}
