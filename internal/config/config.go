// Package config builds the immutable application configuration from the
// TOML config store, a .env file, environment overrides and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// DataDirName is the data directory under the config directory.
const DataDirName = "data"

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return errs.Wrapf(err, errs.CodeConfigurationValueInvalid, "load %s", p)
		}
	}
	return nil
}

// Loader resolves configuration values. Environment variables take
// precedence over the config store.
type Loader struct {
	store   driven.ConfigStore
	getenv  func(string) string
	secrets func(string) (string, error)
	baseDir string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithGetenv replaces os.Getenv.
func WithGetenv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		l.getenv = getenv
	}
}

// WithSecretResolver replaces keyring resolution.
func WithSecretResolver(resolve func(string) (string, error)) LoaderOption {
	return func(l *Loader) {
		l.secrets = resolve
	}
}

// WithBaseDir sets the directory the default data dir is created under.
func WithBaseDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.baseDir = dir
	}
}

// NewLoader creates a loader over store. store may be nil.
func NewLoader(store driven.ConfigStore, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:   store,
		getenv:  os.Getenv,
		secrets: ResolveSecret,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds and validates the configuration from store and the process
// environment.
func Load(store driven.ConfigStore) (domain.Config, error) {
	return NewLoader(store).Load()
}

// Load builds and validates the configuration. Every failure is a
// configuration error and should be fatal at startup.
func (l *Loader) Load() (domain.Config, error) {
	cfg := domain.DefaultConfig()
	r := &reader{loader: l}

	cfg.DataDir = r.str(KeyDataDir, l.defaultDataDir())

	cfg.Retrieval.K = r.integer(KeyRetrievalK, cfg.Retrieval.K)
	cfg.Retrieval.Threshold = r.float(KeyRetrievalThreshold, cfg.Retrieval.Threshold)

	cfg.Chunking.Size = r.integer(KeyChunkSize, cfg.Chunking.Size)
	cfg.Chunking.Overlap = r.integer(KeyChunkOverlap, cfg.Chunking.Overlap)

	cfg.Embedding.Provider = domain.AIProvider(strings.ToLower(r.str(KeyEmbedProvider, "")))
	cfg.Embedding.Model = r.str(KeyEmbedModel, domain.DefaultEmbeddingModels()[cfg.Embedding.Provider])
	cfg.Embedding.BaseURL = r.str(KeyEmbedBaseURL, "")
	cfg.Embedding.APIKey = r.secret(KeyEmbedAPIKey, cfg.Embedding.Provider)
	cfg.Embedding.Dimensions = r.integer(KeyEmbedDimensions, 0)
	cfg.Embedding.RateLimit = r.float(KeyEmbedRateLimit, 0)

	cfg.LLM.Provider = domain.AIProvider(strings.ToLower(r.str(KeyLLMProvider, "")))
	cfg.LLM.Model = r.str(KeyLLMModel, domain.DefaultLLMModels()[cfg.LLM.Provider])
	cfg.LLM.BaseURL = r.str(KeyLLMBaseURL, "")
	cfg.LLM.APIKey = r.secret(KeyLLMAPIKey, cfg.LLM.Provider)
	cfg.LLM.Temperature = r.float(KeyLLMTemperature, 0)
	cfg.LLM.MaxTokens = r.integer(KeyLLMMaxTokens, 0)

	cfg.VectorIndex.Backend = domain.VectorBackend(r.str(KeyVectorBackend, string(cfg.VectorIndex.Backend)))
	cfg.VectorIndex.WeaviateHost = r.str(KeyVectorWeaviateHost, "")
	cfg.VectorIndex.WeaviateScheme = r.str(KeyVectorWeaviateScheme, cfg.VectorIndex.WeaviateScheme)
	cfg.VectorIndex.WeaviateClass = r.str(KeyVectorWeaviateClass, cfg.VectorIndex.WeaviateClass)

	cfg.Ledger.Backend = domain.LedgerBackend(r.str(KeyLedgerBackend, string(cfg.Ledger.Backend)))

	cfg.S3.Endpoint = r.str(KeyS3Endpoint, "")
	cfg.S3.AccessKey = r.secret(KeyS3AccessKey, "")
	cfg.S3.SecretKey = r.secret(KeyS3SecretKey, "")
	cfg.S3.Region = r.str(KeyS3Region, "")
	cfg.S3.UseSSL = r.boolean(KeyS3UseSSL, false)

	cfg.Timeouts.Embedding = r.duration(KeyTimeoutEmbedding, cfg.Timeouts.Embedding)
	cfg.Timeouts.Generation = r.duration(KeyTimeoutGeneration, cfg.Timeouts.Generation)
	cfg.Timeouts.VectorIndex = r.duration(KeyTimeoutVector, cfg.Timeouts.VectorIndex)
	cfg.Timeouts.Fetch = r.duration(KeyTimeoutFetch, cfg.Timeouts.Fetch)

	cfg.Server.Addr = r.str(KeyServerAddr, cfg.Server.Addr)

	if r.err != nil {
		return domain.Config{}, r.err
	}
	if err := Validate(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

func (l *Loader) defaultDataDir() string {
	base := l.baseDir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".sercha-kb")
	}
	return filepath.Join(base, DataDirName)
}

// lookup returns the raw value for key from the environment or the store.
func (l *Loader) lookup(key string) (string, bool) {
	if v := l.getenv(EnvName(key)); v != "" {
		return v, true
	}
	if l.store == nil {
		return "", false
	}
	v, ok := l.store.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s := fmt.Sprint(v)
	return s, s != ""
}

// EnvName returns the environment override for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// reader parses values and keeps the first error.
type reader struct {
	loader *Loader
	err    error
}

func (r *reader) fail(key, raw, want string) {
	if r.err == nil {
		r.err = errs.New(errs.CodeConfigurationValueInvalid,
			fmt.Sprintf("%s: %q is not %s", key, raw, want),
			errs.Field("key", key))
	}
}

func (r *reader) str(key, def string) string {
	v, ok := r.loader.lookup(key)
	if !ok {
		return def
	}
	return strings.TrimSpace(v)
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.loader.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, v, "an integer")
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := r.loader.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.fail(key, v, "a number")
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.loader.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.fail(key, v, "a boolean")
		return def
	}
	return b
}

// duration accepts Go duration strings ("45s", "2m") or whole seconds.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.loader.lookup(key)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, "a duration")
		return def
	}
	return d
}

// secret reads a credential, falling back to the provider's conventional
// environment variable, and resolves keyring references.
func (r *reader) secret(key string, provider domain.AIProvider) string {
	v := r.str(key, "")
	if v == "" {
		if env, ok := providerKeyEnv[string(provider)]; ok {
			v = strings.TrimSpace(r.loader.getenv(env))
		}
	}
	if v == "" {
		return ""
	}
	resolved, err := r.loader.secrets(v)
	if err != nil {
		if r.err == nil {
			r.err = errs.Wrap(err, errs.CodeConfigurationCredentialMissing, "resolve "+key, errs.Field("key", key))
		}
		return ""
	}
	return resolved
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a configuration. It is exported so that configurations
// built in code are held to the same rules as loaded ones.
func Validate(cfg domain.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errs.New(errs.CodeConfigurationValueInvalid, describeField(verrs[0]),
				errs.Field("field", verrs[0].Namespace()))
		}
		return errs.Wrap(err, errs.CodeConfigurationValueInvalid, "invalid configuration")
	}

	if !cfg.VectorIndex.Backend.IsValid() {
		return errs.Errorf(errs.CodeConfigurationValueInvalid, "unknown vector backend %q", cfg.VectorIndex.Backend)
	}
	if cfg.VectorIndex.Backend == domain.VectorBackendWeaviate && cfg.VectorIndex.WeaviateHost == "" {
		return errs.New(errs.CodeConfigurationValueInvalid, KeyVectorWeaviateHost+" is required for the weaviate backend")
	}
	if !cfg.Ledger.Backend.IsValid() {
		return errs.Errorf(errs.CodeConfigurationValueInvalid, "unknown ledger backend %q", cfg.Ledger.Backend)
	}

	if err := checkProvider("embedding", cfg.Embedding.Provider, cfg.Embedding.APIKey); err != nil {
		return err
	}
	if cfg.Embedding.Provider != "" && !cfg.Embedding.Provider.SupportsEmbeddings() {
		return errs.Errorf(errs.CodeConfigurationProviderUnsupported,
			"%s does not offer an embedding API", cfg.Embedding.Provider)
	}
	return checkProvider("llm", cfg.LLM.Provider, cfg.LLM.APIKey)
}

// checkProvider validates a provider that has been set. An unset provider
// is accepted here; commands that need one fail when building services.
func checkProvider(kind string, provider domain.AIProvider, apiKey string) error {
	if provider == "" {
		return nil
	}
	if !provider.IsValid() {
		return errs.Errorf(errs.CodeConfigurationProviderUnsupported, "unknown %s provider %q", kind, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return errs.New(errs.CodeConfigurationCredentialMissing,
			fmt.Sprintf("%s provider %s requires an API key (set %s.api_key or %s)",
				kind, provider, kind, providerKeyEnv[string(provider)]),
			errs.FieldProvider(string(provider)))
	}
	return nil
}

// fieldKeys maps struct namespaces to config keys for error messages.
var fieldKeys = map[string]string{
	"Config.DataDir":                    KeyDataDir,
	"Config.Retrieval.K":                KeyRetrievalK,
	"Config.Retrieval.Threshold":        KeyRetrievalThreshold,
	"Config.Chunking.Size":              KeyChunkSize,
	"Config.Chunking.Overlap":           KeyChunkOverlap,
	"Config.Embedding.Dimensions":       KeyEmbedDimensions,
	"Config.Embedding.RateLimit":        KeyEmbedRateLimit,
	"Config.LLM.Temperature":            KeyLLMTemperature,
	"Config.LLM.MaxTokens":              KeyLLMMaxTokens,
	"Config.VectorIndex.WeaviateScheme": KeyVectorWeaviateScheme,
	"Config.Timeouts.Embedding":         KeyTimeoutEmbedding,
	"Config.Timeouts.Generation":        KeyTimeoutGeneration,
	"Config.Timeouts.VectorIndex":       KeyTimeoutVector,
	"Config.Timeouts.Fetch":             KeyTimeoutFetch,
}

func describeField(fe validator.FieldError) string {
	key, ok := fieldKeys[fe.Namespace()]
	if !ok {
		key = fe.Namespace()
	}
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", key, fieldKeys["Config.Chunking.Size"])
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}
