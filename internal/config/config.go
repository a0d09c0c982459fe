// Package config provides application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	Timezone       *time.Location
	AllowedNumbers []string
	NotionLink     string
	Notion         NotionConfig
	// TableName is the DynamoDB table for conversations and budgets.
	// Empty keeps both in memory.
	TableName   string
	ParamPrefix string
	// UseSSM reads secrets from Parameter Store instead of the environment.
	UseSSM   bool
	Webhook  WebhookConfig
	Features *Features

	secrets localSecrets
}

// NotionConfig holds the Notion database ids.
type NotionConfig struct {
	ExpensesDB  string
	PreOrdersDB string
	WishlistDB  string
}

// WebhookConfig holds the WhatsApp webhook verification secrets.
type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
}

type localSecrets struct {
	notionToken         string
	veryfiClientID      string
	veryfiAuthorization string
	whatsappToken       string
	whatsappPhoneID     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	tzName := getEnv("TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: TIMEZONE %q: %w", tzName, err)
	}

	features, err := LoadFeatures(getEnv("FEATURES_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Timezone:       loc,
		AllowedNumbers: parseNumbers(getEnv("WHITELISTED_NUMBERS", "")),
		NotionLink:     getEnv("NOTION_LINK", ""),
		Notion: NotionConfig{
			ExpensesDB:  getEnv("NOTION_DATABASE_ID", ""),
			PreOrdersDB: getEnv("NOTION_PO_DATABASE_ID", ""),
			WishlistDB:  getEnv("NOTION_WISHLIST_DATABASE_ID", ""),
		},
		TableName:   getEnv("DYNAMODB_TABLE", ""),
		ParamPrefix: strings.TrimRight(getEnv("PARAM_PREFIX", "/wa-bot"), "/"),
		UseSSM:      getEnvBool("USE_SSM", false),
		Webhook: WebhookConfig{
			VerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		},
		Features: features,
		secrets: localSecrets{
			notionToken:         getEnv("NOTION_TOKEN", ""),
			veryfiClientID:      getEnv("VERYFI_CLIENT_ID", ""),
			veryfiAuthorization: getEnv("VERYFI_AUTHORIZATION", ""),
			whatsappToken:       getEnv("WHATSAPP_TOKEN", ""),
			whatsappPhoneID:     getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Timezone == nil {
		return fmt.Errorf("TIMEZONE cannot be empty")
	}
	if len(c.AllowedNumbers) == 0 {
		return fmt.Errorf("WHITELISTED_NUMBERS cannot be empty")
	}
	if c.Notion.ExpensesDB == "" {
		return fmt.Errorf("NOTION_DATABASE_ID cannot be empty")
	}
	if c.ParamPrefix == "" {
		return fmt.Errorf("PARAM_PREFIX cannot be empty")
	}
	if c.Features == nil {
		return fmt.Errorf("features are not loaded")
	}
	if (c.Features.IsEnabled("po") || c.Features.IsEnabled("poList")) && c.Notion.PreOrdersDB == "" {
		return fmt.Errorf("NOTION_PO_DATABASE_ID is required when pre-orders are enabled")
	}
	if (c.Features.IsEnabled("wishlist") || c.Features.IsEnabled("wishlistList")) && c.Notion.WishlistDB == "" {
		return fmt.Errorf("NOTION_WISHLIST_DATABASE_ID is required when the wishlist is enabled")
	}
	if !c.UseSSM && c.secrets.notionToken == "" {
		return fmt.Errorf("NOTION_TOKEN cannot be empty unless USE_SSM is set")
	}
	return nil
}

// IsAllowed reports whether sender is on the allow-list.
func (c *Config) IsAllowed(sender string) bool {
	n := NormalizeNumber(sender)
	if n == "" {
		return false
	}
	for _, allowed := range c.AllowedNumbers {
		if allowed == n {
			return true
		}
	}
	return false
}

// LocalSecrets returns the secrets found in the environment keyed by the
// Parameter Store names the integrations read, e.g. <prefix>/notion-token.
// Secrets missing from the environment are left out.
func (c *Config) LocalSecrets() map[string]string {
	out := make(map[string]string)
	if c.secrets.notionToken != "" {
		out[c.ParamPrefix+"/notion-token"] = c.secrets.notionToken
	}
	if c.secrets.veryfiClientID != "" && c.secrets.veryfiAuthorization != "" {
		out[c.ParamPrefix+"/veryfi"] = mustJSON(map[string]string{
			"client_id":     c.secrets.veryfiClientID,
			"authorization": c.secrets.veryfiAuthorization,
		})
	}
	if c.secrets.whatsappToken != "" && c.secrets.whatsappPhoneID != "" {
		out[c.ParamPrefix+"/whatsapp"] = mustJSON(map[string]string{
			"token":           c.secrets.whatsappToken,
			"phone_number_id": c.secrets.whatsappPhoneID,
		})
	}
	return out
}

// NormalizeNumber strips formatting from a phone number or chat id:
// "+62 812-3" and "628123@c.us" both become digits only.
func NormalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseNumbers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if n := NormalizeNumber(part); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func mustJSON(v map[string]string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
