// internal/pkg/config/config_test.go
package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := Load(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "inventory-bot", cfg.App.Name)
	assert.Equal(t, StoreDriverFile, cfg.Bot.StoreDriver)
	assert.Equal(t, "data.json", cfg.Bot.DataFile)
	assert.Equal(t, 50, cfg.Bot.DefaultThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Bot.SessionTTL)
	assert.Equal(t, "/api/v1/webhook", cfg.Bot.WebhookPath)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Asynq.Queues)
	assert.Equal(t, "localhost:6379", cfg.Asynq.RedisAddr)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddress())
	assert.Equal(t, 10*time.Second, cfg.Server.HandlerTimeout)
	assert.Empty(t, cfg.Bot.BootstrapAdmins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("BOT_STORE_DRIVER", "POSTGRES")
	t.Setenv("BOT_BOOTSTRAP_ADMINS", "111, 222")
	t.Setenv("BOT_SESSION_TTL", "10m")
	t.Setenv("BOT_DEFAULT_THRESHOLD", "5")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("AWS_S3_BUCKET", "snapshots")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ASYNQ_QUEUES", "default:2,broken,low:x")

	cfg, err := Load(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.Bot.StoreDriver)
	assert.Equal(t, []int64{111, 222}, cfg.Bot.BootstrapAdmins)
	assert.Equal(t, 10*time.Minute, cfg.Bot.SessionTTL)
	assert.Equal(t, 5, cfg.Bot.DefaultThreshold)
	assert.Equal(t, StorageDriverS3, cfg.Storage.Driver)
	assert.Equal(t, "snapshots", cfg.AWS.S3Bucket)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, map[string]int{"default": 2}, cfg.Asynq.Queues)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad_admin_ids", env: map[string]string{"BOT_BOOTSTRAP_ADMINS": "12,abc"}},
		{name: "unknown_store_driver", env: map[string]string{"BOT_STORE_DRIVER": "mongo"}},
		{name: "unknown_storage_driver", env: map[string]string{"STORAGE_DRIVER": "ftp"}},
		{name: "negative_threshold", env: map[string]string{"BOT_DEFAULT_THRESHOLD": "-1"}},
		{name: "zero_session_ttl", env: map[string]string{"BOT_SESSION_TTL": "0s"}},
		{name: "zero_handler_timeout", env: map[string]string{"SERVER_HANDLER_TIMEOUT": "0s"}},
		{name: "production_without_token", env: map[string]string{"APP_ENV": "production"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestProductionValidator(t *testing.T) {
	base := func() *Config {
		return &Config{
			Bot:      BotConfig{Token: "123:abc", StoreDriver: StoreDriverPostgres},
			Database: DatabaseConfig{Password: "prod-pass", SSLMode: "require"},
			Asynq:    AsynqConfig{Enabled: true},
			Security: SecurityConfig{SecureHeaders: true},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		missing bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "token_from_secret_store", mutate: func(c *Config) { c.Bot.Token = ""; c.AWS.SecretName = "bot" }},
		{name: "missing_token", mutate: func(c *Config) { c.Bot.Token = "" }, wantErr: true, missing: true},
		{name: "dev_password", mutate: func(c *Config) { c.Database.Password = "inventory_dev" }, wantErr: true, missing: true},
		{name: "ssl_disabled", mutate: func(c *Config) { c.Database.SSLMode = "disable" }, wantErr: true},
		{name: "worker_with_file_store", mutate: func(c *Config) { c.Bot.StoreDriver = StoreDriverFile }, wantErr: true},
		{name: "file_store_without_worker", mutate: func(c *Config) { c.Bot.StoreDriver = StoreDriverFile; c.Asynq.Enabled = false }},
		{name: "insecure_headers", mutate: func(c *Config) { c.Security.SecureHeaders = false }, wantErr: true},
		{name: "tls_without_files", mutate: func(c *Config) { c.Server.TLSEnabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := (&ProductionValidator{}).Validate(cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingRequiredConfig))
		})
	}
}

type fakeSecretAPI struct {
	secret string
	err    error
	calls  int
}

func (f *fakeSecretAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: aws.String(f.secret)}, nil
}

func TestAWSSecretsManager_CachesSecret(t *testing.T) {
	api := &fakeSecretAPI{secret: `{"BOT_TOKEN":"from-aws"}`}
	sm := newAWSSecretsManager(api, "inventory-bot", discardLogger())
	ctx := context.Background()

	token, err := sm.GetSecret(ctx, BotTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "from-aws", token)

	_, err = sm.GetSecret(ctx, BotTokenKey)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)

	require.NoError(t, sm.RefreshSecrets(ctx))
	assert.Equal(t, 2, api.calls)

	_, err = sm.GetSecret(ctx, "UNKNOWN")
	assert.Error(t, err)
}

func TestAWSSecretsManager_Errors(t *testing.T) {
	t.Run("api_failure", func(t *testing.T) {
		sm := newAWSSecretsManager(&fakeSecretAPI{err: errors.New("denied")}, "x", discardLogger())
		_, err := sm.GetSecret(context.Background(), BotTokenKey)
		assert.ErrorContains(t, err, "denied")
	})
	t.Run("malformed_json", func(t *testing.T) {
		sm := newAWSSecretsManager(&fakeSecretAPI{secret: "not json"}, "x", discardLogger())
		_, err := sm.GetSecret(context.Background(), BotTokenKey)
		assert.ErrorContains(t, err, "parse")
	})
}

func TestResolveBotToken(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps_configured_token", func(t *testing.T) {
		cfg := &Config{Bot: BotConfig{Token: "direct"}}
		require.NoError(t, cfg.ResolveBotToken(ctx, NewEnvSecretsManager()))
		assert.Equal(t, "direct", cfg.Bot.Token)
	})
	t.Run("reads_secret_store", func(t *testing.T) {
		cfg := &Config{}
		sm := newAWSSecretsManager(&fakeSecretAPI{secret: `{"BOT_TOKEN":"vaulted"}`}, "x", discardLogger())
		require.NoError(t, cfg.ResolveBotToken(ctx, sm))
		assert.Equal(t, "vaulted", cfg.Bot.Token)
	})
	t.Run("env_missing", func(t *testing.T) {
		t.Setenv(BotTokenKey, "")
		cfg := &Config{}
		assert.Error(t, cfg.ResolveBotToken(ctx, NewEnvSecretsManager()))
	})
}
