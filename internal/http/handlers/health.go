package handlers

import "net/http"

// Health answers liveness probes with the service identity. It sits outside
// the auth group; anything deeper (database reachability) belongs in a
// readiness check, not here.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"service": "mediaforge",
		"status":  "ok",
	})
}
