package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "SENTINEL_CONFIG"
	listenAddrEnv = "SENTINEL_ADDR"
	dbPathEnv     = "SENTINEL_DB_PATH"
	adminKeyEnv   = "SENTINEL_ADMIN_KEY"
	logLevelEnv   = "SENTINEL_LOG_LEVEL"

	defaultInterval     = 3 * time.Hour
	defaultFetchTimeout = 15 * time.Second
)

// Config holds high-level settings required across the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Detection DetectionConfig `yaml:"detection"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// ServerConfig describes the HTTP listener and the manual-trigger credential.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	AdminKey string `yaml:"adminKey"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines how often a full ingest-and-score cycle runs.
type SchedulerConfig struct {
	Interval string `yaml:"interval"`
}

// Every resolves the interval string, falling back to the default on junk.
func (s SchedulerConfig) Every() time.Duration {
	if s.Interval == "" {
		return defaultInterval
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		log.Printf("config: invalid scheduler interval %q, using %s", s.Interval, defaultInterval)
		return defaultInterval
	}
	return d
}

// FetchConfig bounds outbound feed requests.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	RatePerSecond  float64 `yaml:"ratePerSecond"`
	Burst          int     `yaml:"burst"`
	UserAgent      string  `yaml:"userAgent"`
}

// Timeout resolves the per-request fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return defaultFetchTimeout
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// FamilyConfig maps one keyword family to its detection vocabulary. Slice
// order in the config is the match-precedence order.
type FamilyConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// DetectionConfig drives the signal detector. The positive thresholds are part
// of the configured envelope but are not read by the escalation logic.
type DetectionConfig struct {
	WindowHours        int            `yaml:"windowHours"`
	BaselineDays       int            `yaml:"baselineDays"`
	VolumeSigmaOrange  float64        `yaml:"volumeSigmaOrange"`
	VolumeSigmaRouge   float64        `yaml:"volumeSigmaRouge"`
	SentimentOrangeMax float64        `yaml:"sentimentOrangeMax"`
	SentimentRougeMax  float64        `yaml:"sentimentRougeMax"`
	PositiveOrangeMin  float64        `yaml:"positiveOrangeMin"`
	PositiveRougeMin   float64        `yaml:"positiveRougeMin"`
	Families           []FamilyConfig `yaml:"families"`
	OfficialSources    []string       `yaml:"officialSources"`
}

// Window resolves the detection window duration.
func (d DetectionConfig) Window() time.Duration {
	hours := d.WindowHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// SourceConfig describes a single feed endpoint.
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(adminKeyEnv); v != "" {
		c.Server.AdminKey = v
	}

	if v := os.Getenv(dbPathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.AdminKey != "" {
		base.Server.AdminKey = override.Server.AdminKey
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Scheduler.Interval != "" {
		base.Scheduler = override.Scheduler
	}

	if override.Fetch.TimeoutSeconds > 0 {
		base.Fetch.TimeoutSeconds = override.Fetch.TimeoutSeconds
	}
	if override.Fetch.RatePerSecond > 0 {
		base.Fetch.RatePerSecond = override.Fetch.RatePerSecond
	}
	if override.Fetch.Burst > 0 {
		base.Fetch.Burst = override.Fetch.Burst
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}

	base.Detection = mergeDetection(base.Detection, override.Detection)

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func mergeDetection(base, override DetectionConfig) DetectionConfig {
	if override.WindowHours > 0 {
		base.WindowHours = override.WindowHours
	}
	if override.BaselineDays > 0 {
		base.BaselineDays = override.BaselineDays
	}
	if override.VolumeSigmaOrange != 0 {
		base.VolumeSigmaOrange = override.VolumeSigmaOrange
	}
	if override.VolumeSigmaRouge != 0 {
		base.VolumeSigmaRouge = override.VolumeSigmaRouge
	}
	if override.SentimentOrangeMax != 0 {
		base.SentimentOrangeMax = override.SentimentOrangeMax
	}
	if override.SentimentRougeMax != 0 {
		base.SentimentRougeMax = override.SentimentRougeMax
	}
	if override.PositiveOrangeMin != 0 {
		base.PositiveOrangeMin = override.PositiveOrangeMin
	}
	if override.PositiveRougeMin != 0 {
		base.PositiveRougeMin = override.PositiveRougeMin
	}
	if len(override.Families) > 0 {
		base.Families = override.Families
	}
	if len(override.OfficialSources) > 0 {
		base.OfficialSources = override.OfficialSources
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server:    ServerConfig{Addr: ":8080"},
		Database:  DatabaseConfig{Path: "sentinel.db"},
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{Interval: "3h"},
		Fetch: FetchConfig{
			TimeoutSeconds: 15,
			RatePerSecond:  2,
			Burst:          4,
			UserAgent:      "WorldSentinel/1.0",
		},
		Detection: DetectionConfig{
			WindowHours:        24,
			BaselineDays:       30,
			VolumeSigmaOrange:  2.0,
			VolumeSigmaRouge:   3.0,
			SentimentOrangeMax: -0.5,
			SentimentRougeMax:  -0.8,
			PositiveOrangeMin:  0.5,
			PositiveRougeMin:   0.8,
			Families:           defaultFamilies(),
			OfficialSources:    defaultOfficialSources(),
		},
		Sources: defaultSources(),
	}
}

func defaultFamilies() []FamilyConfig {
	return []FamilyConfig{
		{Name: "energie", Keywords: []string{"opec", "opep", "oil", "pétrole", "gaz", "pipeline", "raffinerie", "énergie", "blackout", "electricity"}},
		{Name: "banques", Keywords: []string{"bce", "ecb", "fed", "taux", "rate", "qe", "qt", "liquidity", "bank", "banque", "credit"}},
		{Name: "tech", Keywords: []string{"ai", "chip", "semi", "nvidia", "intel", "export control", "data center", "cloud", "software"}},
		{Name: "auto", Keywords: []string{"tesla", "toyota", "volkswagen", "voiture", "automobile", "ev", "battery"}},
		{Name: "crypto", Keywords: []string{"bitcoin", "crypto", "ethereum", "binance", "coinbase", "wallet", "hack", "listing", "delisting"}},
		{Name: "reg", Keywords: []string{"sec", "amf", "esma", "antitrust", "sanction", "embargo", "tariff", "droit de douane", "ban", "enquête"}},
		{Name: "social", Keywords: []string{"strike", "grève", "protest", "manifestation", "blocage", "syndicat"}},
		{Name: "geo", Keywords: []string{"war", "guerre", "ceasefire", "cessez-le-feu", "attaque", "missile", "otan", "onu"}},
	}
}

func defaultOfficialSources() []string {
	return []string{
		"White House", "Federal Reserve", "U.S. Treasury", "U.S. Commerce",
		"European Commission", "European Central Bank", "ECB", "BCE", "ESMA", "AMF",
		"OPEC", "IEA", "RTE", "CRE",
		"United Nations", "UN", "OTAN", "NATO", "IMF", "World Bank", "Banque mondiale",
		"Elysée", "Matignon", "Ministère",
	}
}

func defaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "Reuters World", URL: "https://www.reuters.com/world/rss"},
		{Name: "AP News World", URL: "https://apnews.com/hub/apf-worldnews?output=rss"},
		{Name: "BBC World", URL: "http://feeds.bbci.co.uk/news/world/rss.xml"},
		{Name: "The Guardian World", URL: "https://www.theguardian.com/world/rss"},
		{Name: "DW", URL: "https://rss.dw.com/rdf/rss-en-world"},
		{Name: "Euronews", URL: "https://www.euronews.com/rss?level=theme&name=news"},
		{Name: "EU Commission", URL: "https://ec.europa.eu/commission/presscorner/home/en?format=rss"},
		{Name: "ECB Press", URL: "https://www.ecb.europa.eu/press/press.html?format=rss"},
		{Name: "AMF France", URL: "https://www.amf-france.org/fr/actualites?format=rss"},
		{Name: "SEC EDGAR current", URL: "https://www.sec.gov/cgi-bin/browse-edgar?action=getcurrent&CIK=&dateb=&owner=include&start=0&output=atom"},
	}
}
