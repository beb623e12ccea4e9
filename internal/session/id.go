package session

import "github.com/google/uuid"

// IDGenerator names new sessions.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator issues UUIDv7 ids. They sort by start time, which is
// the order trace lists a journal's sessions in.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
