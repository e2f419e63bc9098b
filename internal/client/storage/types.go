package storage

// Session is the remembered login of the local player.
type Session struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

const (
	stateFile       = "state.json"
	leaderboardFile = "leaderboard.json"
	sessionFile     = "session.json"
)
