package snowflake

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/snowflakedb/gosnowflake"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

// Authenticator names accepted in the config map.
const (
	AuthSnowflake       = "snowflake"
	AuthOAuth           = "oauth"
	AuthExternalBrowser = "externalbrowser"
	AuthKeyPair         = "snowflake_jwt"
	AuthPasswordMFA     = "username_password_mfa"
)

// ApplicationName is reported to Snowflake as the client application.
const ApplicationName = "snowflake-catalog"

// Credentials are the connection parameters for one warehouse connection.
// They are immutable once a session has been built from them.
type Credentials struct {
	Name           string
	Account        string `validate:"required"`
	Database       string
	Warehouse      string
	Schema         string
	Role           string
	Username       string `validate:"required_unless=Authenticator oauth"`
	Password       string
	Token          string `validate:"required_if=Authenticator oauth"`
	PrivateKeyPath string `validate:"required_if=Authenticator snowflake_jwt"`
	Authenticator  string `validate:"oneof=snowflake oauth externalbrowser snowflake_jwt username_password_mfa"`

	// Options is the vendor options bag. Its keys override the fields above
	// when building the driver config; keys gosnowflake.Config has no field
	// for are sent as session parameters.
	Options map[string]any
}

// target holds the fields a connection test requires.
type target struct {
	Database  string `validate:"required"`
	Warehouse string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FromMap creates Credentials from a generic config map.
func FromMap(config map[string]any) (*Credentials, error) {
	c := &Credentials{
		Name:           stringField(config, "name"),
		Account:        stringField(config, "account"),
		Database:       stringField(config, "database"),
		Warehouse:      stringField(config, "warehouse"),
		Schema:         stringField(config, "schema"),
		Role:           stringField(config, "role"),
		Username:       stringField(config, "username", "user"),
		Password:       stringField(config, "password"),
		Token:          stringField(config, "token"),
		PrivateKeyPath: stringField(config, "private_key_path"),
		Authenticator:  strings.ToLower(stringField(config, "authenticator")),
	}

	switch opts := config["options"].(type) {
	case map[string]any:
		c.Options = opts
	case map[string]string:
		c.Options = make(map[string]any, len(opts))
		for k, v := range opts {
			c.Options[k] = v
		}
	case nil:
	default:
		return nil, fmt.Errorf("options must be a map, got %T", opts)
	}

	if auth, ok := c.Options["authenticator"].(string); ok && auth != "" {
		c.Authenticator = strings.ToLower(auth)
	}
	if c.Authenticator == "" {
		c.Authenticator = AuthSnowflake
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func stringField(config map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := config[key].(string); ok && v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Validate checks the credential shape for the selected authenticator.
func (c *Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid snowflake config: %w", describeValidation(err))
	}
	return nil
}

// RequireTarget fails with a *apperrors.MissingParameterError when the
// effective database or warehouse is blank.
func (c *Credentials) RequireTarget() error {
	t := target{
		Database:  c.EffectiveDatabase(),
		Warehouse: c.EffectiveWarehouse(),
	}
	var verrs validator.ValidationErrors
	if err := validate.Struct(t); errors.As(err, &verrs) {
		return &apperrors.MissingParameterError{Field: strings.ToLower(verrs[0].Field())}
	}
	return nil
}

// EffectiveDatabase is the database that will be sent, options included.
func (c *Credentials) EffectiveDatabase() string {
	return c.effective("database", c.Database)
}

// EffectiveWarehouse is the warehouse that will be sent, options included.
func (c *Credentials) EffectiveWarehouse() string {
	return c.effective("warehouse", c.Warehouse)
}

func (c *Credentials) effective(key, fallback string) string {
	for k, v := range c.Options {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return strings.TrimSpace(fallback)
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", strings.ToLower(fe.Field()), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// DriverConfig merges the computed fields with the options bag (options win)
// and decodes the result into a gosnowflake.Config.
func (c *Credentials) DriverConfig() (*gosnowflake.Config, error) {
	merged := map[string]any{
		"Account":     c.Account,
		"User":        c.Username,
		"Password":    c.Password,
		"Database":    c.Database,
		"Schema":      c.Schema,
		"Warehouse":   c.Warehouse,
		"Role":        c.Role,
		"Token":       c.Token,
		"Application": ApplicationName,
	}
	for k, v := range c.Options {
		if strings.EqualFold(k, "authenticator") {
			continue
		}
		// drop the computed key so a differently cased override cannot collide with it
		for base := range merged {
			if strings.EqualFold(base, k) && base != k {
				delete(merged, base)
			}
		}
		merged[k] = v
	}

	cfg := &gosnowflake.Config{}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToStringPtrHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("build options decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("invalid snowflake options: %w", err)
	}

	for _, key := range md.Unused {
		if cfg.Params == nil {
			cfg.Params = make(map[string]*string)
		}
		v := fmt.Sprint(merged[key])
		cfg.Params[key] = &v
	}

	if err := c.applyAuth(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var stringPtrType = reflect.TypeOf((*string)(nil))

// stringToStringPtrHook lets option values land in *string fields.
func stringToStringPtrHook(from, to reflect.Type, data any) (any, error) {
	if to != stringPtrType || from.Kind() == reflect.Ptr {
		return data, nil
	}
	s := fmt.Sprint(data)
	return &s, nil
}
