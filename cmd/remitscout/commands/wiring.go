package commands

import (
	"context"
	"fmt"
	"remitscout-backend/internal/compare"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/config"
	"remitscout-backend/internal/db"
	"remitscout-backend/internal/providers"
	"remitscout-backend/internal/rates"
	"time"
)

func openDurableStore(ctx context.Context) (rates.DurableStore, error) {
	switch cfg.Durable.Driver {
	case config.DURABLE_REDIS:
		store := rates.NewRedisStore(cfg.Durable.RedisOptions())
		err := store.Ping(ctx)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, nil
	case config.DURABLE_BADGER, "":
		store, err := rates.OpenBadgerStore(cfg.Durable.BadgerPath, tel)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown durable driver '%s'", cfg.Durable.Driver)
	}
}

// newRateService returns the service and a function that flushes pending writes and closes the store.
func newRateService(ctx context.Context) (*rates.Service, func(), error) {
	clientOpts, err := cfg.Rates.ClientOptions()
	if err != nil {
		return nil, nil, err
	}
	serviceOpts, err := cfg.Rates.ServiceOptions()
	if err != nil {
		return nil, nil, err
	}
	store, err := openDurableStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	service := rates.NewService(
		rates.NewAPIClient(clientOpts, tel),
		store,
		chrono.NewStandardTime(),
		tel,
		serviceOpts,
	)
	return service, func() {
		service.Close()
		store.Close()
	}, nil
}

func newProviderScraper() (*providers.Scraper, providers.Tables, error) {
	tables, err := providers.LoadTables(cfg.Providers.TablesPath)
	if err != nil {
		return nil, providers.Tables{}, err
	}
	opts, err := cfg.Providers.DiscovererOptions()
	if err != nil {
		return nil, providers.Tables{}, err
	}
	discoverer := providers.NewDiscoverer(tables, opts, tel)
	return providers.NewScraper(discoverer, tables, tel), tables, nil
}

func knownProviderNames(tables providers.Tables) map[string]string {
	out := make(map[string]string, len(tables.KnownProviders))
	for code, profile := range tables.KnownProviders {
		out[code] = profile.Name
	}
	return out
}

type compareDeps struct {
	settings compare.Settings
	runner   *compare.Runner
	history  *compare.HistoryStore
	close    func()
}

func newCompareDeps(withHistory bool, showBrowser bool) (compareDeps, error) {
	settings, err := compare.LoadSettings(cfg.Compare.SettingsPath)
	if err != nil {
		return compareDeps{}, err
	}
	timeouts, err := settings.Timeouts.Parse()
	if err != nil {
		return compareDeps{}, err
	}
	tables, err := providers.LoadTables(cfg.Providers.TablesPath)
	if err != nil {
		return compareDeps{}, err
	}

	chromeOpts := cfg.Compare.Chrome.Options()
	if showBrowser {
		chromeOpts.Headless = false
	}
	runner, err := compare.NewRunner(
		compare.LaunchChrome(chromeOpts),
		compare.RunnerOptions{
			Selectors:      settings.Selectors,
			Timeouts:       timeouts,
			Bands:          settings.Bands,
			KnownProviders: knownProviderNames(tables),
		},
		chrono.NewStandardTime(),
		tel,
	)
	if err != nil {
		return compareDeps{}, err
	}

	deps := compareDeps{settings: settings, runner: runner, close: func() {}}
	if withHistory && cfg.Compare.HistoryDB != "" {
		database, err := db.OpenDB(cfg.Compare.HistoryDB)
		if err != nil {
			return compareDeps{}, err
		}
		history := compare.NewHistoryStore(database, tel)
		deps.history = &history
		deps.close = func() {
			database.Close()
		}
	}
	return deps, nil
}

func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("--%s: '%s' is not RFC3339 or YYYY-MM-DD", name, value)
}
