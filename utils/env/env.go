package env

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Every Optional* helper returns the default when the variable is unset, and an
// error naming the variable when it is set but cannot be parsed.

func OptionalStringVariable(name string, defaultValue string) string {
	if !HasEnv(name) {
		return defaultValue
	}
	return os.Getenv(name)
}

func OptionalIntVariable(name string, defaultValue int) (int, error) {
	if !HasEnv(name) {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue, fmt.Errorf("environment variable (%s) is not a valid int: %w", name, err)
	}
	return intValue, nil
}

func OptionalBoolVariable(name string, defaultValue bool) (bool, error) {
	if !HasEnv(name) {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(os.Getenv(name))
	if err != nil {
		return defaultValue, fmt.Errorf("environment variable (%s) is not a valid bool: %w", name, err)
	}
	return boolValue, nil
}

// OptionalDurationVariable keeps the textual form so config structs can store
// durations as strings like "30s", the same form the YAML file uses.
func OptionalDurationVariable(name string, defaultValue string) (string, error) {
	if !HasEnv(name) {
		return defaultValue, nil
	}
	value := os.Getenv(name)
	if _, err := time.ParseDuration(value); err != nil {
		return defaultValue, fmt.Errorf("environment variable (%s) is not a valid duration: %w", name, err)
	}
	return value, nil
}

func HasEnv(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}
