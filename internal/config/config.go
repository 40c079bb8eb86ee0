/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	TZ       string
	HTTPAddr string

	DBDSN string

	JiraBaseURL       string
	JiraEmail         string
	JiraToken         string
	JiraBoardIDs      []int64
	JiraPointsField   string
	JiraCustomerField string

	SprintNamePattern string
	CatalogTTL        time.Duration

	HTTPTimeout    time.Duration
	FetchRetries   int
	FetchRetryStep time.Duration

	ReplayBatchSize  int
	ReplayBatchDelay time.Duration

	TargetsFile string

	OpenAIKey     string
	OpenAIModel   string
	OpenAITimeout time.Duration

	CaptureCron  string
	CaptureLimit int

	LogDir string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseInt64s(csv string) []int64 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

func Load() Config {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "dev"),
		TZ:       getenv("APP_TZ", "UTC"),
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBDSN: getenv("DB_DSN", ""),

		JiraBaseURL:       getenv("JIRA_BASE_URL", ""),
		JiraEmail:         getenv("JIRA_EMAIL", ""),
		JiraToken:         getenv("JIRA_API_TOKEN", ""),
		JiraBoardIDs:      parseInt64s(getenv("JIRA_BOARD_IDS", "")),
		JiraPointsField:   getenv("JIRA_POINTS_FIELD", "customfield_10016"),
		JiraCustomerField: getenv("JIRA_CUSTOMER_FIELD", "customfield_10045"),

		SprintNamePattern: getenv("SPRINT_NAME_PATTERN", `(?i)^sprint`),
		CatalogTTL:        dur("CATALOG_TTL", 15*time.Minute),

		HTTPTimeout:    dur("HTTP_TIMEOUT", 15*time.Second),
		FetchRetries:   atoi("FETCH_RETRIES", 3),
		FetchRetryStep: dur("FETCH_RETRY_STEP", 2*time.Second),

		ReplayBatchSize:  atoi("REPLAY_BATCH_SIZE", 10),
		ReplayBatchDelay: dur("REPLAY_BATCH_DELAY", 1500*time.Millisecond),

		TargetsFile: getenv("TARGETS_FILE", "config/targets.json"),

		OpenAIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAITimeout: dur("OPENAI_TIMEOUT", 15*time.Second),

		CaptureCron:  getenv("CAPTURE_CRON", "*/30 * * * *"),
		CaptureLimit: atoi("CAPTURE_LIMIT", 6),

		LogDir: getenv("LOGS_FOLDER", ""),
	}

	if cfg.ReplayBatchSize <= 0 {
		cfg.ReplayBatchSize = 10
	}
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = 3
	}

	// set global timezone if available
	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	} else {
		log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
	}

	return cfg
}
