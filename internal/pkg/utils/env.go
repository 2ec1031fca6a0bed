package utils

import (
	"os"
	"strconv"
	"strings"
)

// GetEnv возвращает значение переменной окружения или fallback, если она не задана.
func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// GetEnvInt is GetEnv for integers; unparsable values fall back.
func GetEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
