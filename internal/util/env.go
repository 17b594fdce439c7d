package util

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	mgmtSecret     string
	mgmtSecretOnce sync.Once
)

func GetEnv(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}

	return defaultVal
}

func GetEnvEnum(key string, defaultVal string, allowedValues []string) string {
	if !ContainsString(allowedValues, defaultVal) {
		log.Panic().Str("key", key).Str("value", defaultVal).Msg("Default value is not in the allowed values list.")
	}

	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}

	if !ContainsString(allowedValues, val) {
		log.Error().Str("key", key).Str("value", val).Strs("allowed", allowedValues).Msg("Value is not allowed. Fallback to default value.")
		return defaultVal
	}

	return val
}

func GetEnvAsInt(key string, defaultVal int) int {
	strVal := GetEnv(key, "")

	if val, err := strconv.Atoi(strVal); err == nil {
		return val
	}

	return defaultVal
}

func GetEnvAsUint32(key string, defaultVal uint32) uint32 {
	strVal := GetEnv(key, "")

	if val, err := strconv.ParseUint(strVal, 10, 32); err == nil {
		return uint32(val)
	}

	return defaultVal
}

func GetEnvAsBool(key string, defaultVal bool) bool {
	strVal := GetEnv(key, "")

	if val, err := strconv.ParseBool(strVal); err == nil {
		return val
	}

	return defaultVal
}

// GetEnvAsStringArr reads ENV and returns the values split by separator.
func GetEnvAsStringArr(key string, defaultVal []string, separator ...string) []string {
	strVal := GetEnv(key, "")

	if len(strVal) == 0 {
		return defaultVal
	}

	sep := ","
	if len(separator) >= 1 {
		sep = separator[0]
	}

	parts := strings.Split(strVal, sep)
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}

	return res
}

// GetEnvAsIntArr reads ENV and returns the values split by separator.
// Entries that are not integers make the whole value fall back to defaultVal.
func GetEnvAsIntArr(key string, defaultVal []int, separator ...string) []int {
	strs := GetEnvAsStringArr(key, nil, separator...)
	if len(strs) == 0 {
		return defaultVal
	}

	res := make([]int, 0, len(strs))
	for _, s := range strs {
		v, err := strconv.Atoi(s)
		if err != nil {
			log.Error().Err(err).Str("key", key).Str("value", s).Msg("Invalid integer in list. Fallback to default value.")
			return defaultVal
		}
		res = append(res, v)
	}

	return res
}

// GetMgmtSecret returns the management secret for the app server, mainly used by health check and readiness endpoints.
// It first attempts to retrieve a value from the provided environment variable and optionally falls back to a random string.
func GetMgmtSecret(envKey string) string {
	mgmtSecretOnce.Do(func() {
		mgmtSecret = GetEnv(envKey, "")
		if mgmtSecret == "" {
			var err error
			mgmtSecret, err = GenerateRandomHexString(16)
			if err != nil {
				log.Panic().Err(err).Msg("Failed to generate random management secret")
			}
			log.Warn().Str("envKey", envKey).Str("mgmtSecret", mgmtSecret).Msg("Could not retrieve management secret from env key, using randomly generated one")
		}
	})

	return mgmtSecret
}
