// Package config содержит логику чтения конфигурации сервиса расчётов.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

// Config содержит параметры конфигурации сервиса расчётов.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	PrizeLedgerAddress   string        `env:"PRIZE_LEDGER_ADDRESS"`
	CreditLedgerVersions string        `env:"CREDIT_LEDGER_VERSIONS"`
	ClaimPeriod          time.Duration `env:"CLAIM_PERIOD"`
	ScanDepthDays        int64         `env:"SCAN_DEPTH_DAYS"`
	SettlementInterval   time.Duration `env:"SETTLEMENT_INTERVAL"`
}

// CreditVersion описывает одну версию кредитного контракта: имя и адрес
// релеера. Порядок в списке — порядок развёртывания, последняя версия
// является актуальной.
type CreditVersion struct {
	Version model.ContractVersion
	BaseURL string
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPrizeAddress := cfg.PrizeLedgerAddress
	envCreditVersions := cfg.CreditLedgerVersions
	envClaimPeriod := cfg.ClaimPeriod
	envScanDepth := cfg.ScanDepthDays
	envInterval := cfg.SettlementInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PrizeLedgerAddress, "p", "", "prize ledger relayer address")
	flag.StringVar(&cfg.CreditLedgerVersions, "c", "", "ordered credit ledger versions, name=addr,name=addr")
	flag.DurationVar(&cfg.ClaimPeriod, "w", 168*time.Hour, "prize claim window duration")
	flag.Int64Var(&cfg.ScanDepthDays, "s", 30, "how many trailing days to scan for pending settlement")
	flag.DurationVar(&cfg.SettlementInterval, "i", time.Minute, "settlement loop interval")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPrizeAddress != "" {
		cfg.PrizeLedgerAddress = envPrizeAddress
	}
	if envCreditVersions != "" {
		cfg.CreditLedgerVersions = envCreditVersions
	}
	if envClaimPeriod != 0 {
		cfg.ClaimPeriod = envClaimPeriod
	}
	if envScanDepth != 0 {
		cfg.ScanDepthDays = envScanDepth
	}
	if envInterval != 0 {
		cfg.SettlementInterval = envInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// CreditVersions разбирает список версий кредитного контракта из строки
// вида "v1=addr1,v2=addr2", сохраняя порядок развёртывания.
func (c *Config) CreditVersions() ([]CreditVersion, error) {
	raw := strings.TrimSpace(c.CreditLedgerVersions)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	res := make([]CreditVersion, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, part := range parts {
		name, addr, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("malformed credit ledger version entry: %q", part)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate credit ledger version: %q", name)
		}
		seen[name] = struct{}{}

		res = append(res, CreditVersion{
			Version: model.ContractVersion(name),
			BaseURL: addr,
		})
	}

	return res, nil
}
