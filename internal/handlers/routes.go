package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	friends := FriendHandler{Friends: deps.Friends, Users: deps.Users, Limiter: deps.RequestLimiter}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/friends", friends.List)
	mux.HandleFunc("/api/v1/friends/requests", friends.Requests)
	mux.HandleFunc("/api/v1/friends/request", friends.Request)
	mux.HandleFunc("/api/v1/friends/accept", friends.Accept)
	mux.HandleFunc("/api/v1/friends/remove", friends.Remove)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Database       Pinger
	Friends        FriendshipStore
	Users          UserDirectory
	RequestLimiter RateLimiter
}
