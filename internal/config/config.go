package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	JWT       JWTConfig
	Log       LogConfig
	Razorpay  RazorpayConfig
	Gateways  GatewaysConfig
	Worker    WorkerConfig
	Estimator EstimatorConfig
	Audience  AudienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// LogConfig selects the slog handler and level
type LogConfig struct {
	Level  string
	Format string
}

// RazorpayConfig holds payment gateway configuration
type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Mock      bool
	Timeout   time.Duration
}

// GatewayConfig configures one outbound channel provider
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Mock    bool
}

// GatewaysConfig holds one provider per notification channel
type GatewaysConfig struct {
	SMS      GatewayConfig
	WhatsApp GatewayConfig
	Email    GatewayConfig
	WebPush  GatewayConfig
}

// WorkerConfig holds delivery worker configuration
type WorkerConfig struct {
	Key          string
	PollInterval time.Duration
	BatchSize    int
}

// EstimatorConfig is the heuristic weight table used to estimate a campaign
// audience at start time. It is not a population count.
type EstimatorConfig struct {
	RoleWeights     map[string]int
	LocationFactor  float64
	ActivityFactors map[string]float64
}

// AudienceConfig tunes the population count cache
type AudienceConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Load loads configuration from environment variables and config files.
// Extra search paths are tried after "." and "./config".
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("Server.ReadTimeout", 15*time.Second)
	v.SetDefault("Server.WriteTimeout", 0) // recheck responses stream for as long as the batch takes
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "khadimemillat")
	v.SetDefault("MongoDB.Timeout", 10*time.Second)
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "json")
	v.SetDefault("Razorpay.BaseURL", "https://api.razorpay.com/v1")
	v.SetDefault("Razorpay.KeyID", "")
	v.SetDefault("Razorpay.KeySecret", "")
	v.SetDefault("Razorpay.Mock", false)
	v.SetDefault("Razorpay.Timeout", 10*time.Second)
	for _, channel := range []string{"SMS", "WhatsApp", "Email", "WebPush"} {
		v.SetDefault("Gateways."+channel+".BaseURL", "")
		v.SetDefault("Gateways."+channel+".APIKey", "")
		v.SetDefault("Gateways."+channel+".Mock", true)
	}
	v.SetDefault("Worker.Key", "")
	v.SetDefault("Worker.PollInterval", 5*time.Second)
	v.SetDefault("Worker.BatchSize", 50)
	v.SetDefault("Estimator.RoleWeights", DefaultRoleWeights())
	v.SetDefault("Estimator.LocationFactor", 0.5)
	v.SetDefault("Estimator.ActivityFactors", map[string]float64{
		"active":   0.7,
		"inactive": 0.2,
		"new":      0.1,
	})
	v.SetDefault("Audience.CacheSize", 512)
	v.SetDefault("Audience.CacheTTL", time.Minute)
}

// DefaultRoleWeights is the stock per-role audience estimate.
func DefaultRoleWeights() map[string]int {
	return map[string]int{
		"everyone":        1000,
		"user":            800,
		"scrapper":        50,
		"field_executive": 40,
		"moderator":       10,
		"accountant":      5,
		"admin":           5,
	}
}
