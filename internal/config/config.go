package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|postgres|memory
	DBDSN    string

	BlobBasePath string // bundle sheets and master keys

	AuthHMACSecret string
	EnableDevLogin bool

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	BundleSize    int
	MaxGraceMarks float64
}

// FromEnv reads the process environment, after loading an optional .env file
// from the working directory. Variables already set win over the file.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	mode := Mode(envOr("MODE", string(ModeOffline)))
	return Config{
		Mode:           mode,
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		DBDriver:       envOr("DB_DRIVER", "sqlite"),
		DBDSN:          envOr("DB_DSN", ""),
		BlobBasePath:   envOr("BLOB_BASE_PATH", "./data"),
		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		EnableDevLogin: envBool("ENABLE_DEV_LOGIN", mode == ModeOffline),
		AdminUser:      envOr("ADMIN_USER", "coe"),
		AdminPassHash:  envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:    csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		BundleSize:     envInt("BUNDLE_SIZE", 20),
		MaxGraceMarks:  envFloat("MAX_GRACE_MARKS", 10),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	return f
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
