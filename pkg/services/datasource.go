// Package services resolves configured connection profiles into explorers.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/snowflake-catalog/pkg/adapters/datasource/snowflake"
	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
	"github.com/ekaya-inc/snowflake-catalog/pkg/config"
	"github.com/ekaya-inc/snowflake-catalog/pkg/logging"
	"github.com/ekaya-inc/snowflake-catalog/pkg/retry"
)

// PasswordStore reads stored connection passwords. *keychain.Manager satisfies it.
type PasswordStore interface {
	Get(connection string) (string, error)
}

// ConnectionSummary describes a configured connection without secrets.
type ConnectionSummary struct {
	Name          string `json:"name" yaml:"name"`
	Account       string `json:"account" yaml:"account"`
	Database      string `json:"database,omitempty" yaml:"database,omitempty"`
	Warehouse     string `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	Authenticator string `json:"authenticator,omitempty" yaml:"authenticator,omitempty"`
	Default       bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

// DatasourceService defines the interface for connection operations.
type DatasourceService interface {
	// List returns the configured connections sorted by name.
	List() []ConnectionSummary

	// Profile resolves a connection name. Empty selects the default.
	Profile(name string) (config.ConnectionProfile, error)

	// Explorer returns the managed, unopened explorer for a connection.
	Explorer(ctx context.Context, name string) (datasource.Explorer, error)

	// Open returns the managed explorer with its session open, retrying
	// transient failures.
	Open(ctx context.Context, name string) (datasource.Explorer, error)

	// TestConnection validates a connection with a throwaway session.
	TestConnection(ctx context.Context, name string) error

	// Stats reports managed connection state.
	Stats() datasource.ConnectionStats

	// Close closes every managed explorer.
	Close() error
}

// datasourceService implements DatasourceService.
type datasourceService struct {
	cfg       *config.Config
	manager   *datasource.ConnectionManager
	passwords PasswordStore
	retry     *retry.Config
	logger    *zap.Logger
}

// NewDatasourceService creates a service over the connections in cfg.
// passwords may be nil when no profile uses the keychain.
func NewDatasourceService(
	cfg *config.Config,
	factory datasource.AdapterFactory,
	passwords PasswordStore,
	logger *zap.Logger,
) DatasourceService {
	logger = logging.OrNop(logger)
	manager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes: cfg.Datasource.ConnectionTTLMinutes,
	}, factory, logger)

	return &datasourceService{
		cfg:       cfg,
		manager:   manager,
		passwords: passwords,
		retry:     retry.WithMaxRetries(cfg.Datasource.OpenRetries),
		logger:    logger,
	}
}

// List returns the configured connections sorted by name.
func (s *datasourceService) List() []ConnectionSummary {
	summaries := make([]ConnectionSummary, 0, len(s.cfg.Connections))
	for _, p := range s.cfg.Connections {
		summaries = append(summaries, ConnectionSummary{
			Name:          p.Name,
			Account:       p.Account,
			Database:      p.Database,
			Warehouse:     p.Warehouse,
			Authenticator: p.Authenticator,
			Default:       p.Name == s.cfg.DefaultConnection,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries
}

// Profile resolves a connection name. Empty selects the default.
func (s *datasourceService) Profile(name string) (config.ConnectionProfile, error) {
	return s.cfg.Connection(name)
}

// Explorer returns the managed, unopened explorer for a connection.
func (s *datasourceService) Explorer(_ context.Context, name string) (datasource.Explorer, error) {
	profile, err := s.cfg.Connection(name)
	if err != nil {
		return nil, err
	}

	adapterConfig, err := s.adapterConfig(profile)
	if err != nil {
		return nil, err
	}

	return s.manager.Get(profile.Name, snowflake.AdapterType, adapterConfig)
}

// Open returns the managed explorer with its session open.
func (s *datasourceService) Open(ctx context.Context, name string) (datasource.Explorer, error) {
	explorer, err := s.Explorer(ctx, name)
	if err != nil {
		return nil, err
	}

	_, err = retry.DoIfRetryable(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, explorer.Open(ctx)
	})
	if err != nil {
		return nil, err
	}
	return explorer, nil
}

// TestConnection validates a connection with a throwaway session.
func (s *datasourceService) TestConnection(ctx context.Context, name string) error {
	explorer, err := s.Explorer(ctx, name)
	if err != nil {
		return err
	}

	if err := explorer.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	s.logger.Info("Connection test successful", zap.String("connection", name))
	return nil
}

// Stats reports managed connection state.
func (s *datasourceService) Stats() datasource.ConnectionStats {
	return s.manager.Stats()
}

// Close closes every managed explorer.
func (s *datasourceService) Close() error {
	return s.manager.Close()
}

// adapterConfig builds the adapter config map, reading the password from
// the keychain when the profile asks for it.
func (s *datasourceService) adapterConfig(profile config.ConnectionProfile) (map[string]any, error) {
	var password string
	if profile.UseKeychain {
		if s.passwords == nil {
			return nil, fmt.Errorf("connection %q uses the keychain but no keychain is available", profile.Name)
		}
		stored, err := s.passwords.Get(profile.Name)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, fmt.Errorf("no password stored for connection %q; run login first: %w", profile.Name, err)
		case err != nil:
			return nil, fmt.Errorf("failed to read password for %q: %w", profile.Name, err)
		}
		password = stored
	}
	return s.cfg.AdapterConfig(profile, password), nil
}

var _ DatasourceService = (*datasourceService)(nil)
