package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// envStr returns the variable k, or d when it is unset or blank.
func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

// envBool accepts the strconv.ParseBool spellings plus yes/no and on/off.
// Anything else yields d.
func envBool(k string, d bool) bool {
    v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
    switch v {
    case "":
        return d
    case "yes", "on":
        return true
    case "no", "off":
        return false
    }
    if b, err := strconv.ParseBool(v); err == nil {
        return b
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k))); err == nil {
        return dur
    }
    return d
}
