package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tOgg1/dmfeed/internal/backend"
	"github.com/tOgg1/dmfeed/internal/config"
	"github.com/tOgg1/dmfeed/internal/db"
	"github.com/tOgg1/dmfeed/internal/feed"
	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

// runtime bundles what a command needs to talk to the message store.
type runtime struct {
	cfg      *config.Config
	database *db.DB
	client   *backend.Client
	store    backend.Store
	contexts *config.ContextStore
}

func openDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	dbCfg := db.DefaultConfig(cfg.DatabasePath())
	dbCfg.MaxOpenConns = cfg.Database.MaxConnections
	dbCfg.BusyTimeoutMs = cfg.Database.BusyTimeoutMs

	database, err := db.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

// openContextOnly returns a runtime without a store, for commands that only
// touch the saved context.
func openContextOnly() (*runtime, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return &runtime{
		cfg:      cfg,
		contexts: config.NewContextStore(filepath.Join(cfg.Global.ConfigDir, "context.yaml")),
	}, nil
}

func openRuntime(ctx context.Context) (*runtime, error) {
	rt, err := openContextOnly()
	if err != nil {
		return nil, err
	}
	cfg := rt.cfg

	switch cfg.Backend.Mode {
	case config.BackendHTTP:
		client, err := backend.NewClient(cfg.Backend.URL, "", backend.WithTimeout(cfg.Backend.Timeout))
		if err != nil {
			return nil, err
		}
		rt.client = client
		rt.store = client
		logger := logging.Component("cli")
		logger.Debug().Str("url", logging.RedactURL(cfg.Backend.URL)).Msg("using remote backend")
	default:
		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.database = database
		rt.store = backend.NewLocal(database)
	}
	return rt, nil
}

func (rt *runtime) Close() error {
	if rt.database != nil {
		return rt.database.Close()
	}
	return nil
}

// viewer resolves the acting user from --user, session.user, or the saved
// context, in that order.
func (rt *runtime) viewer(ctx context.Context) (models.User, error) {
	ref := strings.TrimSpace(userFlag)
	if ref == "" {
		ref = strings.TrimSpace(rt.cfg.Session.User)
	}
	if ref == "" {
		saved, err := rt.contexts.Load()
		if err != nil {
			return models.User{}, err
		}
		ref = saved.User.ID
	}
	if ref == "" {
		return models.User{}, errors.New("no user selected: pass --user or run 'dmfeed context use <user>'")
	}

	user, err := rt.resolve(ctx, ref)
	if err != nil {
		return models.User{}, err
	}
	if rt.client != nil {
		rt.client.SetUser(user.ID)
	}
	return user, nil
}

// contact resolves ref, falling back to the last opened conversation.
func (rt *runtime) contact(ctx context.Context, ref string) (models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		saved, err := rt.contexts.Load()
		if err != nil {
			return models.User{}, err
		}
		ref = saved.Contact.ID
	}
	if ref == "" {
		return models.User{}, errors.New("contact required")
	}
	return rt.resolve(ctx, ref)
}

func (rt *runtime) resolve(ctx context.Context, ref string) (models.User, error) {
	user, err := rt.store.ResolveUser(ctx, ref)
	if errors.Is(err, backend.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("user %q not found", ref)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to resolve user %q: %w", ref, err)
	}
	return user, nil
}

func (rt *runtime) rememberContact(viewer, contact models.User) {
	saved, err := rt.contexts.Load()
	if err != nil {
		return
	}
	saved.SetUser(viewer.ID, viewer.Username)
	saved.SetContact(contact.ID, contact.Username)
	if err := rt.contexts.Save(saved); err != nil {
		logger := logging.Component("cli")
		logger.Debug().Err(err).Msg("failed to save context")
	}
}

func (rt *runtime) newController(viewer models.User) (*feed.Controller, error) {
	return feed.NewController(
		feed.Session{Viewer: viewer},
		rt.store,
		feed.WithPageSize(rt.cfg.Feed.PageSize),
	)
}

// openConversation resolves both parties and loads the newest page.
func (rt *runtime) openConversation(ctx context.Context, contactRef string) (*feed.Controller, models.User, error) {
	viewer, err := rt.viewer(ctx)
	if err != nil {
		return nil, models.User{}, err
	}
	contact, err := rt.contact(ctx, contactRef)
	if err != nil {
		return nil, models.User{}, err
	}
	ctrl, err := rt.newController(viewer)
	if err != nil {
		return nil, models.User{}, err
	}
	if err := ctrl.LoadInitial(ctx, contact.ID); err != nil {
		return nil, models.User{}, err
	}
	rt.rememberContact(viewer, contact)
	return ctrl, contact, nil
}
