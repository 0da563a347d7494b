package logger

import (
	"log"
	"time"
)

// System is the actor recorded for entries not triggered by a caller
const System = "system"

// Debug logs a debug message with consistent format
// Format: [DEBUG] timestamp=... actor=... action=... details=...
func Debug(actor, action, details string) {
	timestamp := time.Now().Format(time.RFC3339)
	log.Printf("[DEBUG] timestamp=%s actor=%s action=%s details=%s", timestamp, actor, action, details)
}
