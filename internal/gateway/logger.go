package gateway

import (
	"log"
	"time"
)

// LogRequest logs a request being sent to an upstream service.
func LogRequest(service, method, path string) {
	log.Printf("[%s] %s %s", service, method, path)
}

// LogResponse logs an upstream response.
func LogResponse(service string, statusCode int, duration time.Duration) {
	log.Printf("[%s] response status=%d duration=%dms", service, statusCode, duration.Milliseconds())
}

// LogError logs an error from an upstream operation.
func LogError(service, operation string, err error) {
	log.Printf("[%s] %s error: %v", service, operation, err)
}
