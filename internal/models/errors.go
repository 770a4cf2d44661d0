package models

import "errors"

// Storage sentinel errors shared by every repository implementation
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)
