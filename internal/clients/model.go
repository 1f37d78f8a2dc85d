package clients

import "time"

type Client struct {
	ID              int64
	Name            string
	Email           string
	RMUserID        int64
	IsEmailVerified bool
	CreatedAt       time.Time
}
