package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mbeckett/TuneVault/internal/api"
	"github.com/mbeckett/TuneVault/internal/database"
)

// TuneVaultConfig is the struct used to contain the various user config
// supplied by file, or manually inside the code.
type TuneVaultConfig struct {
	Fetcher  FetcherConfig           `yaml:"fetcher"`
	Storage  StorageConfig           `yaml:"storage" env-required:"true"`
	Tagging  TaggingConfig           `yaml:"tagging" env-required:"true"`
	Services ServiceConfig           `yaml:"docker_services"`
	Database database.DatabaseConfig `yaml:"database" env-required:"true"`
	Rest     api.RestConfig          `yaml:"api"`
}

// FetcherConfig controls how source media is downloaded and transcoded.
// Cookies holds a base64-encoded Netscape cookies.txt export; sources
// reject or throttle anonymous downloads, so a missing blob aborts boot.
type FetcherConfig struct {
	FfmpegBinPath  string `yaml:"ffmpeg_binary" env:"FORMAT_FFMPEG_BINARY_PATH" env-default:"/usr/bin/ffmpeg"`
	FfprobeBinPath string `yaml:"ffprobe_binary" env:"FORMAT_FFPROBE_BINARY_PATH" env-default:"/usr/bin/ffprobe"`
	Cookies        string `yaml:"cookies" env:"YOUTUBE_COOKIES" validate:"required"`
}

type StorageConfig struct {
	Host        string `yaml:"host" env:"STORAGE_API_HOST" env-default:"https://api.pcloud.com" validate:"required,url"`
	AccessToken string `yaml:"access_token" env:"STORAGE_ACCESS_TOKEN" validate:"required"`
}

type TaggingConfig struct {
	ApiKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY" validate:"required"`
	Model  string `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
}

// ServiceConfig is used to enable/disable the internal initialisation of
// supporting services. By default these are enabled so the server will
// bring up its own Postgres container automatically.
type ServiceConfig struct {
	EnablePostgres bool `yaml:"enable_postgres" env:"SERVICE_ENABLE_POSTGRES" env-default:"true"`
}

// LoadFromFile loads a YAML configuration file in to this config struct,
// with environment variables taking precedence over file values.
func (config *TuneVaultConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s - %v", configPath, err.Error())
	}

	return nil
}

// LoadFromEnv populates this config struct from environment variables alone.
func (config *TuneVaultConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment - %v", err.Error())
	}

	return nil
}

// Validate checks the config for missing or malformed mandatory values.
// Called once at startup so misconfiguration fails fast rather than
// surfacing mid-upload.
func (config *TuneVaultConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	return nil
}
