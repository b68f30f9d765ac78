package instance

import "os"

const fallbackID = "memento-0"

// GetID identifies this process in lock values and worker logs.
// MEMENTO_INSTANCE_ID wins, then the host name.
func GetID() string {
	if id := os.Getenv("MEMENTO_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
