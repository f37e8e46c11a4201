package draft

import (
	"net/http"
	"time"

	"movedocs/internal/config"
	"movedocs/internal/store"

	"go.uber.org/zap"
)

// Open wires an engine for one mounted form from application config: a
// durable SQLite-backed local store plus, when apiBaseURL is set, the remote
// drafts API client. The engine owns the opened store and closes it in Close.
func Open(cfg config.Config, baseKey, apiBaseURL string, token func() string) (*Engine, error) {
	local, err := store.OpenSQLite(cfg.DraftStorePath, cfg.DraftQuotaBytes)
	if err != nil {
		return nil, err
	}

	var remote RemoteStore
	if apiBaseURL != "" {
		remote = NewClient(apiBaseURL, token, &http.Client{Timeout: 15 * time.Second})
	}

	e := NewEngine(Config{
		BaseKey:          baseKey,
		Local:            local,
		Remote:           remote,
		DebounceInterval: cfg.DraftDebounce,
		IdentityInterval: cfg.IdentityDebounce,
		MaxDrafts:        cfg.DraftMaxDrafts,
		Retention:        cfg.DraftRetention,
		Log:              zap.S(),
	})
	e.ownedLocal = local
	return e, nil
}
