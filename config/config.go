package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	Store                 string // "mongo" or "memory"
	MongoURI              string
	DBName                string
	DataFile              string // memory store snapshot path; empty keeps data in RAM only
	JWTSecret             string
	S3Bucket              string
	S3Region              string
	S3AccessKeyID         string
	S3SecretKey           string
	OpenLibraryURL        string
	OpenLibraryRPS        int
	OpenLibraryMaxRetries int
}

func Load() (*Config, error) {
	rps := 2
	if v := getEnv("OPENLIBRARY_RPS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rps = n
		}
	}
	retries := 2
	if v := getEnv("OPENLIBRARY_MAX_RETRIES", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			retries = n
		}
	}

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		Store:                 getEnv("STORE", "mongo"),
		MongoURI:              getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:                getEnv("MONGODB_DB", "reading_list"),
		DataFile:              getEnv("DATA_FILE", ""),
		JWTSecret:             getEnv("JWT_SECRET", "change-me-in-production"),
		S3Bucket:              getEnv("AWS_S3_BUCKET", ""),
		S3Region:              getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:         getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:           getEnv("AWS_SECRET_ACCESS_KEY", ""),
		OpenLibraryURL:        getEnv("OPENLIBRARY_BASE_URL", ""),
		OpenLibraryRPS:        rps,
		OpenLibraryMaxRetries: retries,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// RequiredEnvVars are checked at startup; app exits if any are unset.
// MONGODB_URI and MONGODB_DB are only required when STORE is mongo.
var RequiredEnvVars = []string{
	"JWT_SECRET",
}

var mongoEnvVars = []string{
	"MONGODB_URI",
	"MONGODB_DB",
}

// ValidateEnv checks that all required env vars are set and logs their status.
// Calls log.Fatal if any required var is missing.
func ValidateEnv() {
	required := RequiredEnvVars
	if getEnv("STORE", "mongo") == "mongo" {
		required = append(required, mongoEnvVars...)
	}
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		} else {
			log.Printf("env %s loaded", key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("missing required env: %s (set these in .env or environment)", strings.Join(missing, ", "))
	}
	if os.Getenv("JWT_SECRET") == "change-me-in-production" {
		log.Fatal("JWT_SECRET must be set to a strong secret (not the default change-me-in-production)")
	}
}

// S3Enabled reports whether every AWS var needed for cover mirroring is set.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretKey != ""
}
