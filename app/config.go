package app

// Global config object, set by main.go
var Config struct {
	// Bind address of the experiment server.
	Addr string
	// Path of the sqlite database holding runs, metrics, and the
	// checkpoint catalog.
	DBPath string
	// Directory checkpoint files are written under.
	CheckpointDir string
}
