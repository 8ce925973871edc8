package message

import "errors"

// Sentinel errors for the Message Store service layer.
var (
	ErrNotFound  = errors.New("message: sent email not found")
	ErrDuplicate = errors.New("message: duplicate (campaign, recipient, day)")
)
