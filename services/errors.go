package services

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrSelfAction       = errors.New("cannot perform this action on yourself")
	ErrBlocked          = errors.New("interaction blocked between these users")
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrMessagesDisabled = errors.New("user does not accept direct messages")
	ErrEmailNotVerified = errors.New("email not verified")
	ErrImageTooLarge    = errors.New("image exceeds the 5MB limit")
	ErrUnsupportedImage = errors.New("only jpeg, png, gif and webp images are allowed")
)
