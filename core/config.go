package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const APP_NAME = "diskcli"

const (
	defaultTimeout        = 60 * time.Second
	DefaultFolderMimeType = "application/vnd.google-apps.folder"
)

// BackendConfig holds the settings of one backend. It is loaded once per
// invocation and handed to the backend by value.
type BackendConfig struct {
	Backend           Backend
	AccessToken       string
	BaseURL           string
	ResourcesEndpoint string
	UploadEndpoint    string
	DownloadEndpoint  string
	FolderMimeType    string
	Timeout           time.Duration
	Retries           uint64
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type settingKey struct {
	name     string
	fallback string
	required bool
}

func settingKeys(backend Backend) []settingKey {
	switch backend {
	case Yandex:
		return []settingKey{
			{name: "ACCESS_TOKEN", required: true},
			{name: "BASE_URL", fallback: "https://cloud-api.yandex.net/v1/disk", required: true},
			{name: "RESOURCES_ENDPOINT", fallback: "/resources", required: true},
			{name: "UPLOAD_ENDPOINT", fallback: "/resources/upload", required: true},
			{name: "DOWNLOAD_ENDPOINT", fallback: "/resources/download", required: true},
			{name: "TIMEOUT", fallback: defaultTimeout.String()},
			{name: "RETRIES", fallback: "0"},
		}
	case Google:
		return []settingKey{
			{name: "ACCESS_TOKEN", required: true},
			{name: "BASE_URL", fallback: "https://www.googleapis.com/drive/v3/", required: true},
			{name: "MIME_TYPE", fallback: DefaultFolderMimeType, required: true},
			{name: "TIMEOUT", fallback: defaultTimeout.String()},
			{name: "RETRIES", fallback: "0"},
		}
	}
	return nil
}

// EnvFileName is the dotenv file consulted for a backend, e.g. "google.env".
func EnvFileName(backend Backend) string {
	return string(backend) + ".env"
}

// DefaultConfigDir prefers the working directory and falls back to the user
// config directory when the backend's env file is not there.
func DefaultConfigDir(backend Backend) string {
	if _, err := os.Stat(EnvFileName(backend)); err == nil {
		return "."
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}

	return filepath.Join(configDir, APP_NAME)
}

// LoadBackendConfig reads <dir>/<backend>.env and overlays the process
// environment through lookup. A key present but empty overrides its default.
func LoadBackendConfig(backend Backend, dir string, lookup LookupFunc) (BackendConfig, error) {
	keys := settingKeys(backend)
	if keys == nil {
		return BackendConfig{}, Usagef("unsupported service %q", backend)
	}

	fileValues, err := readEnvFile(filepath.Join(dir, EnvFileName(backend)))
	if err != nil {
		return BackendConfig{}, &ConfigurationError{Backend: backend, Key: EnvFileName(backend), Err: err}
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		full := backend.EnvPrefix() + k.name
		value, ok := fileValues[full]
		if envValue, found := lookup(full); found {
			value, ok = envValue, true
		}
		if !ok {
			value = k.fallback
		}
		if k.required && value == "" {
			return BackendConfig{}, &ConfigurationError{Backend: backend, Key: full}
		}
		values[k.name] = value
	}

	cfg := BackendConfig{
		Backend:           backend,
		AccessToken:       values["ACCESS_TOKEN"],
		BaseURL:           values["BASE_URL"],
		ResourcesEndpoint: values["RESOURCES_ENDPOINT"],
		UploadEndpoint:    values["UPLOAD_ENDPOINT"],
		DownloadEndpoint:  values["DOWNLOAD_ENDPOINT"],
		FolderMimeType:    values["MIME_TYPE"],
	}

	cfg.Timeout, err = time.ParseDuration(values["TIMEOUT"])
	if err != nil || cfg.Timeout < 0 {
		return BackendConfig{}, &ConfigurationError{Backend: backend, Key: backend.EnvPrefix() + "TIMEOUT", Err: fmt.Errorf("invalid duration %q", values["TIMEOUT"])}
	}

	retries, err := strconv.ParseUint(values["RETRIES"], 10, 32)
	if err != nil {
		return BackendConfig{}, &ConfigurationError{Backend: backend, Key: backend.EnvPrefix() + "RETRIES", Err: fmt.Errorf("invalid count %q", values["RETRIES"])}
	}
	cfg.Retries = retries

	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	return values, err
}
