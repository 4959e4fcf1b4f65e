package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	assessmenthttp "github.com/bnema/catq/internal/adapters/assessment/http"
	identityfile "github.com/bnema/catq/internal/adapters/identity/file"
	"github.com/bnema/catq/internal/adapters/render/quiz"
	chainstore "github.com/bnema/catq/internal/adapters/secrets/chain"
	filestore "github.com/bnema/catq/internal/adapters/secrets/file"
	passstore "github.com/bnema/catq/internal/adapters/secrets/pass"
	"github.com/bnema/catq/internal/adapters/secrets/token"
	"github.com/bnema/catq/internal/config"
	"github.com/bnema/catq/internal/logging"
	"github.com/bnema/catq/internal/ports"
	"github.com/go-logr/logr"
	"github.com/spf13/viper"
)

type app struct {
	config     config.Config
	identities *identityfile.Store
	tokens     *token.Store
	httpClient *http.Client
	newLogger  func() (logr.Logger, io.Closer, error)
	runQuiz    func(context.Context, quiz.Controller, quiz.Options) error
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	secretStore, err := newSecretStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	identities, err := identityfile.NewStore(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("wire identity store: %w", err)
	}

	return &app{
		config:     cfg,
		identities: identities,
		tokens:     token.NewStore(secretStore),
		httpClient: http.DefaultClient,
		newLogger: func() (logr.Logger, io.Closer, error) {
			return logging.NewFile(cfg.LogFile, cfg.LogLevel)
		},
		runQuiz: quiz.Run,
	}, nil
}

func newSecretStore(cfg config.Config) (ports.SecretStore, error) {
	switch cfg.SecretsBackend {
	case config.SecretsBackendPass:
		return passstore.NewStore(), nil
	case config.SecretsBackendFile:
		return filestore.NewStore(cfg.SecretsDir), nil
	default:
		return chainstore.NewPassFirstWithFileFallback(cfg.SecretsDir)
	}
}

// assessmentClient builds the service client for one run. Tokens are read
// per request so a login in another terminal takes effect immediately.
func (a *app) assessmentClient(logger logr.Logger) assessmenthttp.Client {
	client := assessmenthttp.New(assessmenthttp.DefaultAPI(a.config.APIBaseURL), logger)
	client.HTTPClient = a.httpClient
	client.RequestTimeout = a.config.APITimeout
	client.Tokens = a.tokens.Token
	return client
}
