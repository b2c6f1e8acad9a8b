package chathub

import "campuslink/backend/internal/models"

// Client is the interface for any type of live connection. It abstracts the
// underlying transport so the hub can manage connections uniformly and tests
// can use in-memory doubles.
type Client interface {
	// GetConnID returns the unique identifier of this connection.
	GetConnID() string
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes outbound events to.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the client down and releases its send channel.
	Close()
}
