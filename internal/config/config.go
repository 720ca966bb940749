package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	RunAddress      string
	Env             string
	Dev             bool
	DatabaseURI     string
	WhatsAppNumber  string
	StoreName       string
	OrderCodePrefix string
	AutomationKey   string

	Stripe   Stripe
	ManyChat ManyChat
}

type Stripe struct {
	SecretKey      string
	WebhookSecrets []string
	SuccessURL     string
	CancelURL      string
}

type ManyChat struct {
	APIKey     string
	BaseURL    string
	OperatorID string
	FlowID     string
	RateLimit  float64
	Fields     FieldIDs
}

// FieldIDs maps template fields to ManyChat custom-field ids. Zero means the
// field is not mapped and is left out of updates.
type FieldIDs struct {
	OrderNumber         int
	OrderTotal          int
	OrderDescription    int
	OrderDate           int
	OrderDeliveryMethod int
	ClientFirstName     int
	PaymentMethod       int
	ClientPhone         int
}

const (
	defaultSuccessURL = "https://fastsavorys.vercel.app/pages/fast.html?checkout=success&session_id={CHECKOUT_SESSION_ID}"
	defaultCancelURL  = "https://fastsavorys.vercel.app/pages/fast.html?checkout=cancel&order_id="
)

// New reads configuration from the environment and, when present, from the
// given dotenv files. Real environment variables win over file values.
func New(envFiles ...string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		v.SetConfigFile(f)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	return FromViper(v), nil
}

func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		RunAddress:      getEnv(v, "RUN_ADDRESS", ""),
		Env:             firstOf(v, "development", "APP_ENV", "VERCEL_ENV"),
		Dev:             firstOf(v, "", "APP_ENV", "NODE_ENV") == "development",
		DatabaseURI:     firstOf(v, "", "DATABASE_URL", "SUPABASE_DB_URL"),
		WhatsAppNumber:  getEnv(v, "WHATSAPP_NUMBER", "5573999366554"),
		StoreName:       getEnv(v, "STORE_NAME", "Fast Savory's"),
		OrderCodePrefix: getEnv(v, "ORDER_CODE_PREFIX", "FAST"),
		AutomationKey:   getEnv(v, "AUTOMATION_JWT_SECRET", ""),
		Stripe: Stripe{
			SecretKey:      getEnv(v, "STRIPE_SECRET_KEY", ""),
			WebhookSecrets: SplitSecrets(getEnv(v, "STRIPE_WEBHOOK_SECRET", "")),
			SuccessURL:     getEnv(v, "CHECKOUT_SUCCESS_URL", defaultSuccessURL),
			CancelURL:      getEnv(v, "CHECKOUT_CANCEL_URL", defaultCancelURL),
		},
		ManyChat: ManyChat{
			APIKey:     getEnv(v, "MANYCHAT_API_KEY", ""),
			BaseURL:    getEnv(v, "MANYCHAT_API_BASE", "https://api.manychat.com/fb"),
			OperatorID: firstOf(v, "", "MANYCHAT_OPERATOR_ID", "MANYCHAT_USER_ID_JESSICA"),
			FlowID:     firstOf(v, "", "MANYCHAT_FLOW_ID_NEW_ORDER", "MANYCHAT_FLOW_ID_NOVO_PEDIDO"),
			RateLimit:  getFloat(v, "MANYCHAT_RATE_LIMIT", 10),
			Fields: FieldIDs{
				OrderNumber:         getInt(v, "MANYCHAT_FIELD_ID_ORDER_NUMBER"),
				OrderTotal:          getInt(v, "MANYCHAT_FIELD_ID_ORDER_TOTAL"),
				OrderDescription:    getInt(v, "MANYCHAT_FIELD_ID_ORDER_DESCRIPTION"),
				OrderDate:           getInt(v, "MANYCHAT_FIELD_ID_ORDER_DATE"),
				OrderDeliveryMethod: getInt(v, "MANYCHAT_FIELD_ID_ORDER_DELIVERY_METHOD"),
				ClientFirstName:     getInt(v, "MANYCHAT_FIELD_ID_CLIENT_FIRST_NAME"),
				PaymentMethod:       getInt(v, "MANYCHAT_FIELD_ID_PAYMENT_METHOD"),
				ClientPhone:         getInt(v, "MANYCHAT_FIELD_ID_CLIENT_PHONE"),
			},
		},
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = ":" + getEnv(v, "PORT", "3001")
	}

	return cfg
}

// IsDevelopment controls whether vendor error details reach API clients. It
// needs APP_ENV or NODE_ENV set to development explicitly.
func (c *Config) IsDevelopment() bool {
	return c.Dev
}

// SplitSecrets parses a comma-separated secret list, dropping blanks.
func SplitSecrets(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(v *viper.Viper, key, fallback string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return fallback
}

func firstOf(v *viper.Viper, fallback string, keys ...string) string {
	for _, k := range keys {
		if value := getEnv(v, k, ""); value != "" {
			return value
		}
	}
	return fallback
}

func getInt(v *viper.Viper, key string) int {
	n, err := strconv.Atoi(getEnv(v, key, ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func getFloat(v *viper.Viper, key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(v, key, ""), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
