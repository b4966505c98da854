package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/flovouin/dashviz/internal/fetcher"
	"github.com/flovouin/dashviz/internal/metadata"
)

// The prefix for all environment variables to consider when loading the configuration.
const environmentVariablesPrefix = "DASHVIZ_"

// The default location of the configuration file.
const defaultConfigFilePath = "dashviz.yml"

// The configuration used to call the API.
type apiConfig struct {
	Endpoint   string `koanf:"endpoint"`    // The URL to the API.
	Token      string `koanf:"token"`       // A bearer token. Used if set.
	CookieName string `koanf:"cookie_name"` // If set, the token is sent in a cookie with this name instead of a header.
	ApiKey     string `koanf:"api_key"`     // An API key, sent in a header. Used if no token is set.
	Username   string `koanf:"username"`    // The username to log in with, if neither a token nor an API key is set.
	Password   string `koanf:"password"`    // The password to log in with.
}

// Defines how visualisation data is fetched.
type fetchConfig struct {
	Debounce time.Duration `koanf:"debounce"` // The delay between the last filter change and a request.
	Timeout  time.Duration `koanf:"timeout"`  // The maximum duration of a request. No timeout if zero.
}

// Defines how metadata tables are fetched.
type metadataConfig struct {
	Path     string `koanf:"path"`      // The API path of a table, where `{table}` is replaced by the table name.
	RowsPath string `koanf:"rows_path"` // The path to the rows within the response data. The data itself if empty.
}

// Defines where metadata tables are cached between runs.
type cacheConfig struct {
	Backend   string        `koanf:"backend"`    // Either `none`, `memory`, or `redis`.
	TTL       time.Duration `koanf:"ttl"`        // How long cached tables are kept. Forever if zero.
	RedisAddr string        `koanf:"redis_addr"` // The address of the Redis server.
	Prefix    string        `koanf:"prefix"`     // The prefix of Redis keys.
}

// Defines how fetched data is written to files.
type outputConfig struct {
	Path   string `koanf:"path"`   // The directory where results are written.
	Clear  bool   `koanf:"clear"`  // Whether files with the right prefix should be removed from the output directory before writing.
	Prefix string `koanf:"prefix"` // The prefix of generated file names.
}

// The entire configuration of the command line.
type dashvizConfig struct {
	API      apiConfig      `koanf:"api"`      // The configuration used to call the API.
	Fetch    fetchConfig    `koanf:"fetch"`    // Defines how visualisation data is fetched.
	Metadata metadataConfig `koanf:"metadata"` // Defines how metadata tables are fetched.
	Cache    cacheConfig    `koanf:"cache"`    // Defines where metadata tables are cached between runs.
	Output   outputConfig   `koanf:"output"`   // Defines how fetched data is written to files.
}

// Returns the configuration used when nothing else is specified.
func defaultConfig() dashvizConfig {
	return dashvizConfig{
		Fetch: fetchConfig{
			Debounce: fetcher.DefaultDebounce,
		},
		Metadata: metadataConfig{
			Path: metadata.DefaultPathTemplate,
		},
		Cache: cacheConfig{
			Backend:   "none",
			TTL:       time.Hour,
			RedisAddr: "localhost:6379",
			Prefix:    "dashviz:",
		},
		Output: outputConfig{
			Path:   "./",
			Prefix: "dv-",
		},
	}
}

// Converts an environment variable name to a configuration key, e.g. `DASHVIZ_API_COOKIE_NAME` to `api.cookie_name`.
func environmentVariableToKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, environmentVariablesPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Registers the flags overriding configuration keys. Flags are named after the keys they override.
func addConfigFlags(flags *pflag.FlagSet) {
	defaults := defaultConfig()

	flags.String("config", defaultConfigFilePath, "The configuration file. Ignored if it does not exist.")
	flags.String("api.endpoint", "", "The URL to the API.")
	flags.String("api.token", "", "A bearer token used to authenticate requests.")
	flags.String("api.cookie_name", "", "Sends the token in a cookie with this name.")
	flags.String("api.api_key", "", "An API key used to authenticate requests.")
	flags.Duration("fetch.debounce", defaults.Fetch.Debounce, "The delay between the last filter change and a request.")
	flags.Duration("fetch.timeout", defaults.Fetch.Timeout, "The maximum duration of a request.")
	flags.String("cache.backend", defaults.Cache.Backend, "Where metadata tables are cached: none, memory, or redis.")
	flags.String("output.path", defaults.Output.Path, "The directory where results are written.")
	flags.Bool("output.clear", defaults.Output.Clear, "Removes previously generated files before writing.")
}

// Loads the configuration from the defaults, the config file, the environment, and the command line flags, in this
// order of precedence.
func loadConfig(flags *pflag.FlagSet) (*dashvizConfig, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil)
	if err != nil {
		return nil, err
	}

	configFilePath := defaultConfigFilePath
	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && len(p) > 0 {
			configFilePath = p
		}
	}

	err = k.Load(file.Provider(configFilePath), yaml.Parser())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	err = k.Load(env.Provider(environmentVariablesPrefix, ".", environmentVariableToKey), nil)
	if err != nil {
		return nil, err
	}

	if flags != nil {
		err = k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only flags named after a configuration key are considered.
			if !strings.Contains(f.Name, ".") {
				return "", nil
			}
			return f.Name, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, err
		}
	}

	var conf dashvizConfig
	err = k.Unmarshal("", &conf)
	if err != nil {
		return nil, err
	}

	return &conf, nil
}
