package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	AuthProviderFirebase = "firebase"
	AuthProviderLocal    = "local"

	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

// FirebaseConfig holds the BaaS connection parameters. Only APIKey is used
// for password sign-in; the rest are served to the page and checked at startup.
type FirebaseConfig struct {
	APIKey            string
	AuthDomain        string
	ProjectID         string
	StorageBucket     string
	MessagingSenderID string
	AppID             string
	AuthURL           string // Identity Toolkit base URL, overridable for tests
}

// FeedbackConfig configures the AI comment shown after each submission.
type FeedbackConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	TemplatePath string
	Tone         string
	Closing      string
}

type Config struct {
	MongoURI       string
	PostgresURI    string
	RedisURI       string
	Port           string
	Host           string   // Raw HOST env (e.g. https://journal.example.com)
	AllowedHost    string   // Hostname only for strict host check (production only)
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	Environment    string   // ENV: production, development, etc.
	LogLevel       string
	LogFormat      string

	AuthProvider     string
	StoreDriver      string
	SeedUserEmail    string
	SeedUserBirthday string

	Firebase FirebaseConfig
	Feedback FeedbackConfig
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	// AllowedHost is only set in production; host check is skipped in development
	var allowedHost string
	if env == "production" {
		allowedHost = hostname(host)
	}

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", ""), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" && !containsOrigin(allowedOrigins, u) {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}

	firebase := FirebaseConfig{
		APIKey:            getFirebaseEnv("API_KEY"),
		AuthDomain:        getFirebaseEnv("AUTH_DOMAIN"),
		ProjectID:         getFirebaseEnv("PROJECT_ID"),
		StorageBucket:     getFirebaseEnv("STORAGE_BUCKET"),
		MessagingSenderID: getFirebaseEnv("MESSAGING_SENDER_ID"),
		AppID:             getFirebaseEnv("APP_ID"),
		AuthURL:           getEnv("FIREBASE_AUTH_URL", "https://identitytoolkit.googleapis.com/v1"),
	}

	authProvider := strings.ToLower(getEnv("AUTH_PROVIDER", ""))
	if authProvider == "" {
		authProvider = AuthProviderLocal
		if firebase.APIKey != "" {
			authProvider = AuthProviderFirebase
		}
	}

	return &Config{
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/kokoro")),
		PostgresURI:    getEnv("POSTGRES_URI", "postgres://localhost:5432/kokoro?sslmode=disable"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:           getEnv("PORT", "8080"),
		Host:           host,
		AllowedHost:    allowedHost,
		AllowedOrigins: allowedOrigins,
		Environment:    env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),

		AuthProvider:     authProvider,
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo)),
		SeedUserEmail:    getEnv("SEED_USER_EMAIL", ""),
		SeedUserBirthday: getEnv("SEED_USER_BIRTHDAY", ""),

		Firebase: firebase,
		Feedback: FeedbackConfig{
			APIKey:       getEnv("OPENAI_API_KEY", getEnv("NEXT_PUBLIC_OPENAI_API_KEY", "")),
			BaseURL:      strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Model:        getEnv("FEEDBACK_MODEL", "gpt-3.5-turbo"),
			Temperature:  getFloat("FEEDBACK_TEMPERATURE", 0.7),
			Timeout:      getDuration("FEEDBACK_TIMEOUT", 30*time.Second),
			TemplatePath: getEnv("FEEDBACK_TEMPLATE_PATH", ""),
			Tone:         getEnv("FEEDBACK_TONE", ""),
			Closing:      getEnv("FEEDBACK_CLOSING", ""),
		},
	}
}

// Validate reports every missing required value. A misconfigured process
// is expected to exit at startup.
func (c *Config) Validate() error {
	var missing []string

	if c.AuthProvider == AuthProviderFirebase {
		for name, value := range map[string]string{
			"FIREBASE_API_KEY":             c.Firebase.APIKey,
			"FIREBASE_AUTH_DOMAIN":         c.Firebase.AuthDomain,
			"FIREBASE_PROJECT_ID":          c.Firebase.ProjectID,
			"FIREBASE_STORAGE_BUCKET":      c.Firebase.StorageBucket,
			"FIREBASE_MESSAGING_SENDER_ID": c.Firebase.MessagingSenderID,
			"FIREBASE_APP_ID":              c.Firebase.AppID,
		} {
			if value == "" {
				missing = append(missing, name)
			}
		}
	} else if c.AuthProvider != AuthProviderLocal {
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.StoreDriver != StoreDriverMongo && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Feedback.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Feedback.Temperature < 0 || c.Feedback.Temperature > 2 {
		return fmt.Errorf("FEEDBACK_TEMPERATURE must be between 0 and 2, got %v", c.Feedback.Temperature)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func hostname(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// getFirebaseEnv reads FIREBASE_<name>, falling back to the NEXT_PUBLIC_ name
// used by the web client's .env files.
func getFirebaseEnv(name string) string {
	return getEnv("FIREBASE_"+name, getEnv("NEXT_PUBLIC_FIREBASE_"+name, ""))
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
