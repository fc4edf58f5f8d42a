package sigauth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/httpmsgsig/httpsig"
)

// ConfigFile is the path searched in the XDG config directories when
// LoadConfig is called without an explicit path.
const ConfigFile = "httpmsgsig/sigauth.yaml"

// DefaultNoOlderThan is the default maximum signature age.
const DefaultNoOlderThan = 900 * time.Second

// DefaultCoveredComponents lists the components a signature must cover
// unless configured otherwise.
var DefaultCoveredComponents = []string{"@method", "@request-target", "@authority", "date"}

// Config controls which signed requests are accepted.
type Config struct {
	// Except lists request paths that are passed through unverified.
	Except []string `yaml:"except"`

	// Label selects the signature to verify. When empty, the request must
	// carry exactly one signature.
	Label string `yaml:"label"`

	// NoOlderThan rejects signatures created earlier than this. Zero
	// disables the age check. YAML values use time.ParseDuration syntax.
	NoOlderThan time.Duration `yaml:"no_older_than"`

	CreatedRequired bool `yaml:"created_required"`
	ExpiresRequired bool `yaml:"expires_required"`
	KeyIDRequired   bool `yaml:"keyid_required"`
	NonceRequired   bool `yaml:"nonce_required"`
	AlgRequired     bool `yaml:"alg_required"`
	TagRequired     bool `yaml:"tag_required"`

	// CoveredComponents lists component identifiers every signature must
	// cover.
	CoveredComponents []string `yaml:"covered_components"`

	// ErrorResponse is written for rejected requests.
	ErrorResponse ErrorResponse `yaml:"error_response"`

	// DefaultKey is used when the signature has no keyid. A keyid missing
	// from Keys is rejected.
	DefaultKey *KeyConfig `yaml:"default_key"`

	// Keys maps key identifiers to verification keys.
	Keys map[string]KeyConfig `yaml:"keys"`
}

// ErrorResponse describes the response written for a rejected request.
type ErrorResponse struct {
	Status  int               `yaml:"status"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
}

// KeyConfig describes one verification key.
//
// Material holds PEM data, a JSON Web Key, or the raw secret for
// hmac-sha256. When Material is empty it is read from Path. When Alg is
// set, signatures naming another algorithm are rejected. Without Alg the
// signature's alg parameter selects the algorithm.
type KeyConfig struct {
	Alg      string `yaml:"alg"`
	Material string `yaml:"material"`
	Path     string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		NoOlderThan:       DefaultNoOlderThan,
		CreatedRequired:   true,
		CoveredComponents: append([]string(nil), DefaultCoveredComponents...),
		ErrorResponse:     ErrorResponse{Status: http.StatusUnauthorized},
		Keys:              map[string]KeyConfig{},
	}
}

// LoadConfig reads a YAML configuration file and merges it over
// DefaultConfig. Options absent from the file keep their default values.
//
// An empty path searches ConfigFile in the XDG config directories. When
// no file is found there, the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		found, err := xdg.SearchConfigFile(ConfigFile)
		if err != nil {
			return cfg, nil
		}

		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	if cfg.Keys == nil {
		cfg.Keys = map[string]KeyConfig{}
	}

	return cfg, nil
}

// Validate reports every problem found in the configuration.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.NoOlderThan < 0 {
		result = multierror.Append(result, fmt.Errorf("no_older_than must not be negative: %s", c.NoOlderThan))
	}

	if c.ErrorResponse.Status < 100 || c.ErrorResponse.Status > 599 {
		result = multierror.Append(result, fmt.Errorf("error_response: invalid status %d", c.ErrorResponse.Status))
	}

	for _, raw := range c.CoveredComponents {
		if _, err := httpsig.ParseComponentID(raw); err != nil {
			result = multierror.Append(result, fmt.Errorf("covered_components: %w", err))
		}
	}

	if c.DefaultKey != nil {
		if err := c.DefaultKey.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("default_key: %w", err))
		}
	}

	for id, key := range c.Keys {
		if err := key.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("keys[%s]: %w", id, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func (k KeyConfig) validate() error {
	var errs []error

	if k.Material == "" && k.Path == "" {
		errs = append(errs, errors.New("material or path is required"))
	}

	if k.Alg != "" {
		if _, err := httpsig.ParseAlgorithm(k.Alg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
