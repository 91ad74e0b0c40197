package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/cache"
	"github.com/malusev998/currency/cli/cmd"
	"github.com/malusev998/currency/fetchers"
	"github.com/malusev998/currency/storage"
)

const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
	CacheDriverNone   = "none"
)

type (
	FetchersConfig map[currency.Provider]fetchers.BaseConfig
	StorageConfig  map[storage.Provider]interface{}

	CacheConfig struct {
		Driver      string
		Rates       cache.Config
		PairEnabled bool
		Pair        cache.Config
		Redis       cache.RedisConfig
	}

	LogConfig struct {
		Level  string
		Format string
	}

	Config struct {
		Provider          currency.Provider
		Fetchers          FetchersConfig
		Cache             CacheConfig
		Storage           []storage.Provider
		StorageConfig     StorageConfig
		CurrenciesToFetch []string
		Log               LogConfig
	}
)

// providerKeys are the config sections read under providers.
var providerKeys = []string{"fixer", "exchangeratesapi", "exchangerateapi", "openexchangerates"}

func setDefaults() {
	viper.SetDefault("provider", "fixer")
	viper.SetDefault("cache.driver", CacheDriverMemory)
	viper.SetDefault("cache.prefix", cache.DefaultPrefix)
	viper.SetDefault("cache.ttl", int(cache.DefaultRatesTTL.Seconds()))
	viper.SetDefault("cache.pair.enabled", false)
	viper.SetDefault("cache.pair.prefix", cache.DefaultPairPrefix)
	viper.SetDefault("cache.pair.ttl", int(cache.DefaultPairTTL.Seconds()))
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("currencies", []string{"USD", "EUR"})

	for _, key := range providerKeys {
		viper.SetDefault("providers."+key+".timeout", fetchers.DefaultTimeout.Milliseconds())
		viper.SetDefault("providers."+key+".retries", fetchers.DefaultRetries)
	}
}

func getMysqlDSN(config map[string]string) string {
	return storage.NewMySQLDSN(config["user"], config["password"], config["addr"], config["db"])
}

func getFetchersConfig() (FetchersConfig, error) {
	config := make(FetchersConfig, len(providerKeys))

	for _, key := range providerKeys {
		provider, err := currency.ConvertToProviderFromString(key)
		if err != nil {
			return nil, err
		}

		prefix := "providers." + key + "."
		config[provider] = fetchers.BaseConfig{
			URL:     viper.GetString(prefix + "url"),
			APIKey:  viper.GetString(prefix + "apikey"),
			Timeout: time.Duration(viper.GetInt64(prefix+"timeout")) * time.Millisecond,
			Retries: viper.GetInt(prefix + "retries"),
		}
	}

	return config, nil
}

func getConfig(options cmd.Options) (*Config, error) {
	setDefaults()

	providerName := viper.GetString("provider")
	if options.Provider != "" {
		providerName = options.Provider
	}

	provider, err := currency.ConvertToProviderFromString(providerName)
	if err != nil {
		return nil, err
	}

	fetchersConfig, err := getFetchersConfig()
	if err != nil {
		return nil, err
	}

	storages, err := storage.ConvertToProvidersFromStringSlice(viper.GetStringSlice("storage"))
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(viper.GetString("cache.driver"))
	switch driver {
	case CacheDriverRedis, CacheDriverMemory, CacheDriverNone:
	default:
		return nil, fmt.Errorf("cache driver %s is not supported", driver)
	}

	mysqlConfig := viper.GetStringMapString("databases.mysql")
	mongodbConfig := viper.GetStringMapString("databases.mongo")

	storageBaseConfig := storage.BaseConfig{
		Migrate: viper.GetBool("migrate"),
	}

	logFormat := viper.GetString("log.format")
	if options.LogFormat != "" {
		logFormat = options.LogFormat
	}

	return &Config{
		Provider: provider,
		Fetchers: fetchersConfig,
		Cache: CacheConfig{
			Driver: driver,
			Rates: cache.Config{
				Prefix: viper.GetString("cache.prefix"),
				TTL:    time.Duration(viper.GetInt64("cache.ttl")) * time.Second,
			},
			PairEnabled: viper.GetBool("cache.pair.enabled"),
			Pair: cache.Config{
				Prefix: viper.GetString("cache.pair.prefix"),
				TTL:    time.Duration(viper.GetInt64("cache.pair.ttl")) * time.Second,
			},
			Redis: cache.RedisConfig{
				Addr:     viper.GetString("redis.addr"),
				Password: viper.GetString("redis.password"),
				DB:       viper.GetInt("redis.db"),
				URL:      viper.GetString("redis.url"),
			},
		},
		Storage: storages,
		StorageConfig: StorageConfig{
			storage.MySQL: storage.MySQLConfig{
				BaseConfig:       storageBaseConfig,
				ConnectionString: getMysqlDSN(mysqlConfig),
				TableName:        mysqlConfig["table"],
				IDGenerator:      nil,
			},
			storage.MongoDB: storage.MongoDBConfig{
				BaseConfig:       storageBaseConfig,
				ConnectionString: mongodbConfig["uri"],
				Database:         mongodbConfig["db"],
				Collection:       mongodbConfig["collection"],
			},
		},
		CurrenciesToFetch: viper.GetStringSlice("currencies"),
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: logFormat,
		},
	}, nil
}
