package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai_orchestrator/internal/models"
)

// providerRow is the providers table layout.
type providerRow struct {
	ID              string    `db:"id"`
	DisplayName     string    `db:"display_name"`
	ProviderType    string    `db:"provider_type"`
	Endpoint        string    `db:"endpoint"`
	Model           string    `db:"model"`
	EncryptedAPIKey string    `db:"encrypted_api_key"`
	MaxTokens       int       `db:"max_tokens"`
	Temperature     float64   `db:"temperature"`
	SystemPrompt    string    `db:"system_prompt"`
	Headers         string    `db:"headers"`
	Active          bool      `db:"active"`
	Priority        int       `db:"priority"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

const providerColumns = `id, display_name, provider_type, endpoint, model, encrypted_api_key,
	max_tokens, temperature, system_prompt, headers, active, priority, created_at, updated_at`

// ProviderRepository stores the system-default providers
type ProviderRepository struct {
	db  *DB
	enc *Encryption
}

// NewProviderRepository creates a repository. enc may be nil in development.
func NewProviderRepository(db *DB, enc *Encryption) *ProviderRepository {
	return &ProviderRepository{db: db, enc: enc}
}

// GetByID retrieves a provider by ID
func (r *ProviderRepository) GetByID(ctx context.Context, id string) (models.Provider, error) {
	var row providerRow
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`

	if err := r.db.conn.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Provider{}, ErrProviderNotFound
		}
		return models.Provider{}, fmt.Errorf("failed to get provider: %w", err)
	}
	return r.toModel(row)
}

// List returns every system provider, active or not, ordered by id
func (r *ProviderRepository) List(ctx context.Context) ([]models.Provider, error) {
	var rows []providerRow
	query := `SELECT ` + providerColumns + ` FROM providers ORDER BY id`

	if err := r.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	providers := make([]models.Provider, 0, len(rows))
	for _, row := range rows {
		p, err := r.toModel(row)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Upsert inserts a provider or replaces the stored one with the same id
func (r *ProviderRepository) Upsert(ctx context.Context, p models.Provider) error {
	row, err := r.fromModel(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO providers (id, display_name, provider_type, endpoint, model, encrypted_api_key,
		                       max_tokens, temperature, system_prompt, headers, active, priority)
		VALUES (:id, :display_name, :provider_type, :endpoint, :model, :encrypted_api_key,
		        :max_tokens, :temperature, :system_prompt, :headers, :active, :priority)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			provider_type = EXCLUDED.provider_type,
			endpoint = EXCLUDED.endpoint,
			model = EXCLUDED.model,
			encrypted_api_key = EXCLUDED.encrypted_api_key,
			max_tokens = EXCLUDED.max_tokens,
			temperature = EXCLUDED.temperature,
			system_prompt = EXCLUDED.system_prompt,
			headers = EXCLUDED.headers,
			active = EXCLUDED.active,
			priority = EXCLUDED.priority,
			updated_at = NOW()
	`
	if _, err := r.db.conn.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to upsert provider %s: %w", p.ID, err)
	}
	return nil
}

// SetActive enables or disables a provider
func (r *ProviderRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.conn.ExecContext(ctx, `UPDATE providers SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}
	return requireRow(result, ErrProviderNotFound)
}

// Delete removes a provider
func (r *ProviderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}
	return requireRow(result, ErrProviderNotFound)
}

func (r *ProviderRepository) toModel(row providerRow) (models.Provider, error) {
	apiKey, err := r.enc.OpenSecret(row.EncryptedAPIKey, apiKeyScope(row.ID))
	if err != nil {
		return models.Provider{}, fmt.Errorf("provider %s api key: %w", row.ID, err)
	}

	var headers map[string]string
	if row.Headers != "" {
		raw, err := r.enc.OpenSecret(row.Headers, row.ID+"/headers")
		if err != nil {
			return models.Provider{}, fmt.Errorf("provider %s headers: %w", row.ID, err)
		}
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			return models.Provider{}, fmt.Errorf("provider %s headers: %w", row.ID, err)
		}
	}

	return models.Provider{
		ID:          row.ID,
		DisplayName: row.DisplayName,
		Type:        models.ProviderType(row.ProviderType),
		Config: models.ConnectionConfig{
			Endpoint:     row.Endpoint,
			APIKey:       apiKey,
			Model:        row.Model,
			MaxTokens:    row.MaxTokens,
			Temperature:  row.Temperature,
			SystemPrompt: row.SystemPrompt,
			Headers:      headers,
		},
		Active:   row.Active,
		Priority: row.Priority,
	}, nil
}

func (r *ProviderRepository) fromModel(p models.Provider) (providerRow, error) {
	apiKey, err := r.enc.SealSecret(p.Config.APIKey, apiKeyScope(p.ID))
	if err != nil {
		return providerRow{}, fmt.Errorf("provider %s api key: %w", p.ID, err)
	}

	headers := ""
	if len(p.Config.Headers) > 0 {
		raw, err := json.Marshal(p.Config.Headers)
		if err != nil {
			return providerRow{}, fmt.Errorf("provider %s headers: %w", p.ID, err)
		}
		// headers may carry credentials for custom endpoints
		if headers, err = r.enc.SealSecret(string(raw), p.ID+"/headers"); err != nil {
			return providerRow{}, fmt.Errorf("provider %s headers: %w", p.ID, err)
		}
	}

	return providerRow{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		ProviderType:    string(p.Type),
		Endpoint:        p.Config.Endpoint,
		Model:           p.Config.Model,
		EncryptedAPIKey: apiKey,
		MaxTokens:       p.Config.MaxTokens,
		Temperature:     p.Config.Temperature,
		SystemPrompt:    p.Config.SystemPrompt,
		Headers:         headers,
		Active:          p.Active,
		Priority:        p.Priority,
	}, nil
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
