package config

// ApplyDefaults fills cfg with the baseline configuration. Load calls it
// before parsing, so any key present in the file replaces the default.
func ApplyDefaults(cfg *Config) {
	// --- Log ---
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	// --- Server ---
	cfg.Server.ListenAddress = ":8080"

	// --- Backend ---
	cfg.Backend.URL = "http://localhost:8000/api"
	cfg.Backend.UpdateExpiredPath = "nfd/update-expired/"
	cfg.Backend.CheckExpiredPath = "nfd/check-expired/"
	cfg.Backend.TimeoutSeconds = 30
	cfg.Backend.MaxRequestsPerSecond = 5
	cfg.Backend.BurstRequestsPerSecond = 5

	// --- Auto update ---
	cfg.AutoUpdate.TTLSeconds = 30 * 60
	cfg.AutoUpdate.RefreshEnabled = false
	cfg.AutoUpdate.RefreshIntervalSeconds = 5 * 60

	// --- History ---
	cfg.History.Size = 100
}
