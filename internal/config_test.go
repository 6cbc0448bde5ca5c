package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() TuneVaultConfig {
	return TuneVaultConfig{
		Fetcher: FetcherConfig{
			FfmpegBinPath:  "/usr/bin/ffmpeg",
			FfprobeBinPath: "/usr/bin/ffprobe",
			Cookies:        "IyBOZXRzY2FwZSBIVFRQIENvb2tpZSBGaWxl",
		},
		Storage: StorageConfig{
			Host:        "https://api.pcloud.com",
			AccessToken: "test-token",
		},
		Tagging: TaggingConfig{
			ApiKey: "test-key",
			Model:  "gemini-2.0-flash",
		},
	}
}

func Test_Validate_AcceptsCompleteConfig(t *testing.T) {
	config := validConfig()
	require.NoError(t, config.Validate())
}

func Test_Validate_RejectsMissingCookiesBlob(t *testing.T) {
	config := validConfig()
	config.Fetcher.Cookies = ""

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cookies")
}

func Test_Validate_RejectsMissingProviderSecrets(t *testing.T) {
	config := validConfig()
	config.Storage.AccessToken = ""

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessToken")

	config = validConfig()
	config.Tagging.ApiKey = ""

	err = config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ApiKey")
}

func Test_Validate_RejectsMalformedStorageHost(t *testing.T) {
	config := validConfig()
	config.Storage.Host = "not a url"

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Host")
}
