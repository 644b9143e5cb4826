package instance

import "github.com/fixersapp/fixers-backend/pkg/env"

// GetID identifies the running process in logs and lock values. Heroku's
// DYNO wins over WORKER_ID.
func GetID() string {
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	return env.Get("WORKER_ID", "local")
}
