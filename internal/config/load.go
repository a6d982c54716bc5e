package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	ProfileEnv     = "APP_ENV"
	DefaultProfile = "dev"
)

// mirrorEnvCase exposes every variable under its upper and lower case name so
// viper's AutomaticEnv finds it either way.
func mirrorEnvCase() {
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		k, v := kv[:i], kv[i+1:]
		_ = os.Setenv(strings.ToUpper(k), v)
		_ = os.Setenv(strings.ToLower(k), v)
	}
}

func loadDotenvIfExists(filename string, overload bool) (bool, error) {
	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if overload {
		return true, godotenv.Overload(filename)
	}
	return true, godotenv.Load(filename)
}

func readConfigIfExists(path string, merge bool) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	viper.SetConfigFile(path)
	var err error
	if merge {
		err = viper.MergeInConfig()
	} else {
		err = viper.ReadInConfig()
	}
	if err == nil {
		return true, nil
	}
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, errors.Wrapf(err, "read %s", path)
}

// Profile returns the lower-cased APP_ENV, or "dev".
func Profile() string {
	for _, k := range []string{ProfileEnv, strings.ToLower(ProfileEnv)} {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return DefaultProfile
}

// Load reads, in order: <dir>/.env, <dir>/.<profile>.env (overriding),
// <dir>/conf/config.toml and <dir>/conf/<profile>.config.toml (merged), then
// enables env overrides with "." spelled "__". At least one of .env and
// conf/config.toml must exist.
func Load(dir string) error {
	envFound, err := loadDotenvIfExists(filepath.Join(dir, ".env"), false)
	if err != nil {
		return errors.Wrap(err, "load .env")
	}
	if envFound {
		mirrorEnvCase()
	}
	profile := Profile()

	found, err := loadDotenvIfExists(filepath.Join(dir, "."+profile+".env"), true)
	if err != nil {
		return errors.Wrapf(err, "load .%s.env", profile)
	}
	if found {
		mirrorEnvCase()
	}

	cfgFound, err := readConfigIfExists(filepath.Join(dir, "conf", "config.toml"), false)
	if err != nil {
		return err
	}
	if !envFound && !cfgFound {
		return errors.New("no configuration sources found: missing both .env and conf/config.toml")
	}

	if _, err := readConfigIfExists(filepath.Join(dir, "conf", profile+".config.toml"), true); err != nil {
		return err
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()
	return nil
}
