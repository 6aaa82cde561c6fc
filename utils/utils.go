package utils

import "os"

func GetEnvOrDefault(envVar string, defaultValue string) string {
	envValue := os.Getenv(envVar)
	if len(envValue) == 0 {
		return defaultValue
	}
	return envValue
}
