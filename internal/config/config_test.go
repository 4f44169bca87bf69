package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigPrecedenceFlagOverEnv(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, `
[store]
path = "/from/file.db"
`)

	flagPath := "/from/flag.db"
	cfg, _, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		DotenvPath: missingDotenv(t),
		Env: map[string]string{
			"MEDSTOCK_STORE_PATH": "/from/env.db",
		},
		Flags: FlagOverrides{
			StorePath: &flagPath,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "/from/flag.db", cfg.Store.Path)
}

func TestLoadConfigPrecedenceEnvOverFile(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, `
[alerts]
expiry_window_days = 14
`)

	cfg, _, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		DotenvPath: missingDotenv(t),
		Env: map[string]string{
			"MEDSTOCK_ALERTS_EXPIRY_WINDOW_DAYS": "45",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 45, cfg.Alerts.ExpiryWindowDays)
}

func TestLoadConfigPrecedenceFileOverDefault(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, `
[alerts]
expiry_window_days = 14
`)

	cfg, report, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		DotenvPath: missingDotenv(t),
	})
	require.NoError(t, err)
	require.Equal(t, 14, cfg.Alerts.ExpiryWindowDays)
	require.Equal(t, defaultMinimum, cfg.Alerts.DefaultMinimum)
	require.True(t, report.ConfigLoaded)
	require.Equal(t, cfgPath, report.ConfigPath)
}

func TestLoadConfigFromTOMLParsesAllSupportedFields(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, `
[store]
path = "/var/lib/medstock/estoque.db"
seed_demo = true

[alerts]
expiry_window_days = 60
default_minimum = 4
default_maximum = 40

[logging]
level = "debug"
file = "/var/log/medstock.log"
max_size_mb = 2
max_files = 3
`)

	cfg, _, err := Load(LoadOptions{ConfigPath: cfgPath, DotenvPath: missingDotenv(t)})
	require.NoError(t, err)
	require.Equal(t, "/var/lib/medstock/estoque.db", cfg.Store.Path)
	require.True(t, cfg.Store.SeedDemo)
	require.Equal(t, 60, cfg.Alerts.ExpiryWindowDays)
	require.Equal(t, 4, cfg.Alerts.DefaultMinimum)
	require.Equal(t, 40, cfg.Alerts.DefaultMaximum)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "/var/log/medstock.log", cfg.Logging.File)
	require.Equal(t, 2, cfg.Logging.MaxSizeMB)
	require.Equal(t, 3, cfg.Logging.MaxFiles)
}

func TestMissingConfigFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	cfg, report, err := Load(LoadOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.toml"),
		DotenvPath: missingDotenv(t),
		Env:        map[string]string{"MEDSTOCK_HOME": home},
	})
	require.NoError(t, err)
	require.False(t, report.ConfigLoaded)
	require.Equal(t, filepath.Join(home, defaultStoreFile), cfg.Store.Path)
	require.Equal(t, defaultExpiryWindowDays, cfg.Alerts.ExpiryWindowDays)
	require.Equal(t, defaultLogLevel, cfg.Logging.Level)
}

func TestLoadConfigReadsDotenvBelowProcessEnv(t *testing.T) {
	t.Parallel()

	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte(
		"MEDSTOCK_ALERTS_DEFAULT_MINIMUM=3\nMEDSTOCK_LOG_LEVEL=warn\nUNRELATED=1\n",
	), 0o600))

	cfg, report, err := Load(LoadOptions{
		ConfigPath: writeConfigFile(t, ""),
		DotenvPath: dotenv,
		Env: map[string]string{
			"MEDSTOCK_LOG_LEVEL": "error",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Alerts.DefaultMinimum)
	require.Equal(t, "error", cfg.Logging.Level)
	require.Equal(t, dotenv, report.DotenvPath)
	require.ElementsMatch(t, []string{"MEDSTOCK_ALERTS_DEFAULT_MINIMUM", "MEDSTOCK_LOG_LEVEL"}, report.DotenvKeys)
}

func TestLoadConfigDotenvPathFromEnv(t *testing.T) {
	t.Parallel()

	dotenv := filepath.Join(t.TempDir(), "medstock.env")
	require.NoError(t, os.WriteFile(dotenv, []byte("MEDSTOCK_SEED_DEMO=true\n"), 0o600))

	cfg, _, err := Load(LoadOptions{
		ConfigPath: writeConfigFile(t, ""),
		Env:        map[string]string{"MEDSTOCK_DOTENV": dotenv},
	})
	require.NoError(t, err)
	require.True(t, cfg.Store.SeedDemo)
}

func TestLoadConfigValidationRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"window zero":       "[alerts]\nexpiry_window_days = 0\n",
		"window too large":  "[alerts]\nexpiry_window_days = 400\n",
		"negative minimum":  "[alerts]\ndefault_minimum = -1\n",
		"maximum below min": "[alerts]\ndefault_minimum = 50\ndefault_maximum = 20\n",
		"unknown log level": "[logging]\nlevel = \"loud\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Load(LoadOptions{
				ConfigPath: writeConfigFile(t, contents),
				DotenvPath: missingDotenv(t),
			})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigRejectsMalformedInputs(t *testing.T) {
	t.Parallel()

	_, _, err := Load(LoadOptions{
		ConfigPath: writeConfigFile(t, "[alerts\n"),
		DotenvPath: missingDotenv(t),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, _, err = Load(LoadOptions{
		ConfigPath: writeConfigFile(t, ""),
		DotenvPath: missingDotenv(t),
		Env:        map[string]string{"MEDSTOCK_SEED_DEMO": "maybe"},
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfigFile(t, "[alerts]\ndefault_maximum = 500\n")
	cfg, report, err := Load(LoadOptions{
		DotenvPath: missingDotenv(t),
		Env:        map[string]string{"MEDSTOCK_CONFIG_PATH": cfgPath},
	})
	require.NoError(t, err)
	require.Equal(t, cfgPath, report.ConfigPath)
	require.Equal(t, 500, cfg.Alerts.DefaultMaximum)
}

func TestWriteDefaultRoundTripsThroughLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Store.Path = "/tmp/medstock-test.db"
	cfg.Alerts.ExpiryWindowDays = 21

	wrote, err := WriteDefault(path, cfg)
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = WriteDefault(path, DefaultConfig())
	require.NoError(t, err)
	require.False(t, wrote)

	loaded, _, err := Load(LoadOptions{ConfigPath: path, DotenvPath: missingDotenv(t)})
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	return p
}

func missingDotenv(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "absent.env")
}
