package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"cms-downloader/lib/configutil"
	configlibsql "cms-downloader/lib/configutil/libsql"
)

const (
	DefaultDownloadsDir       = "downloads"
	DefaultCredentialsFile    = ".env"
	DefaultIndexFile          = ".cms-index.db"
	DefaultCacheDir           = ".cache/pages"
	DefaultCourseListLifetime = 24 * time.Hour
	DefaultCoursePageLifetime = 15 * time.Minute
	DefaultConcurrency        = 4
	DefaultRequestsPerSecond  = 4
	DefaultRetries            = 5
	DefaultTimeout            = 60 * time.Second
	DefaultWatchSchedule      = "@every 6h"
)

type Cache struct {
	Dir      string `json:"dir" yaml:"dir"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
	// durations are written the way time.ParseDuration reads them ("24h")
	RawCourseListLifetime string `json:"course_list_lifetime" yaml:"course_list_lifetime"`
	RawCoursePageLifetime string `json:"course_page_lifetime" yaml:"course_page_lifetime"`
}

func (c Cache) CourseListLifetime() time.Duration {
	d, _ := parseDuration("", c.RawCourseListLifetime, DefaultCourseListLifetime)
	return d
}

func (c Cache) CoursePageLifetime() time.Duration {
	d, _ := parseDuration("", c.RawCoursePageLifetime, DefaultCoursePageLifetime)
	return d
}

type Mirror struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" env:"CMS_MIRROR_ENDPOINT"`
	AccessKey string `json:"access_key" yaml:"access_key" env:"CMS_MIRROR_ACCESS_KEY"`
	SecretKey string `json:"secret_key" yaml:"secret_key" env:"CMS_MIRROR_SECRET_KEY"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Prefix    string `json:"prefix" yaml:"prefix"`
}

func (m Mirror) Enabled() bool {
	return m.Endpoint != ""
}

type Notify struct {
	Server       string   `json:"server" yaml:"server"`
	Port         int      `json:"port" yaml:"port"`
	EmailAddress string   `json:"email_address" yaml:"email_address"`
	Password     string   `json:"password" yaml:"password" env:"CMS_NOTIFY_PASSWORD"`
	To           []string `json:"to" yaml:"to"`
}

func (n Notify) Enabled() bool {
	return n.Server != ""
}

type Watch struct {
	Schedule string `json:"schedule" yaml:"schedule"`
}

type Config struct {
	Host              string   `json:"host" yaml:"host" env:"CMS_HOST"`
	DownloadsDir      string   `json:"downloads_dir" yaml:"downloads_dir" env:"CMS_DOWNLOADS_DIR"`
	AllowedExtensions []string `json:"allowed_extensions" yaml:"allowed_extensions"`
	Courses           []string `json:"courses" yaml:"courses"`

	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Username        string `json:"username" yaml:"username" env:"CMS_USERNAME"`
	Password        string `json:"password" yaml:"password" env:"CMS_PASSWORD"`
	// a pointer so that an explicit false in a local override is kept
	InsecureSkipVerify *bool `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	Concurrency       int    `json:"concurrency" yaml:"concurrency"`
	RequestsPerSecond int    `json:"requests_per_second" yaml:"requests_per_second"`
	Retries           int    `json:"retries" yaml:"retries"`
	RawTimeout        string `json:"timeout" yaml:"timeout"`
	// Timezone is an IANA name, run times are shown in it. The local zone
	// is used when it is empty.
	Timezone string `json:"timezone" yaml:"timezone" env:"CMS_TIMEZONE"`

	Index  configlibsql.Struct `json:"index" yaml:"index"`
	Cache  Cache               `json:"cache" yaml:"cache"`
	Mirror Mirror              `json:"mirror" yaml:"mirror"`
	Notify Notify              `json:"notify" yaml:"notify"`
	Watch  Watch               `json:"watch" yaml:"watch"`
}

// durations are validated by Load, so the accessors fall back to the
// defaults only on a Config that was not loaded.

func (c Config) Timeout() time.Duration {
	d, _ := parseDuration("", c.RawTimeout, DefaultTimeout)
	return d
}

func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) SkipVerify() bool {
	return c.InsecureSkipVerify == nil || *c.InsecureSkipVerify
}

// Load reads the configuration at `path` along with its local override and
// environment overrides, then fills in defaults and validates it.
func Load(path string) (Config, error) {
	config, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	err = config.resolve()
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", field)
	}
	return d, nil
}

func defaultStr(value *string, fallback string) {
	if *value == "" {
		*value = fallback
	}
}

func defaultInt(value *int, fallback int) {
	if *value == 0 {
		*value = fallback
	}
}

func (c *Config) resolve() error {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if c.Host == "" {
		return fmt.Errorf("host: a CMS host is required")
	}
	host, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	if !host.IsAbs() || host.Host == "" {
		return fmt.Errorf("host: '%s' is not an absolute url", c.Host)
	}

	defaultStr(&c.DownloadsDir, DefaultDownloadsDir)
	defaultStr(&c.CredentialsFile, DefaultCredentialsFile)
	defaultStr(&c.Cache.Dir, DefaultCacheDir)
	defaultStr(&c.Watch.Schedule, DefaultWatchSchedule)
	if c.Index.Url == "" {
		defaultStr(&c.Index.File, DefaultIndexFile)
	}

	defaultInt(&c.Concurrency, DefaultConcurrency)
	defaultInt(&c.RequestsPerSecond, DefaultRequestsPerSecond)
	defaultInt(&c.Retries, DefaultRetries)
	defaultInt(&c.Notify.Port, 587)
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency: must be at least 1, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond < 1 {
		return fmt.Errorf("requests_per_second: must be at least 1, got %d", c.RequestsPerSecond)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries: must not be negative, got %d", c.Retries)
	}

	if c.Timezone != "" {
		_, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	_, err = parseDuration("timeout", c.RawTimeout, DefaultTimeout)
	if err != nil {
		return err
	}
	_, err = parseDuration(
		"cache.course_list_lifetime",
		c.Cache.RawCourseListLifetime,
		DefaultCourseListLifetime,
	)
	if err != nil {
		return err
	}
	_, err = parseDuration(
		"cache.course_page_lifetime",
		c.Cache.RawCoursePageLifetime,
		DefaultCoursePageLifetime,
	)
	if err != nil {
		return err
	}

	if c.Mirror.Enabled() && c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror: a bucket is required when an endpoint is set")
	}
	if c.Notify.Enabled() && (c.Notify.EmailAddress == "" || len(c.Notify.To) == 0) {
		return fmt.Errorf("notify: email_address and to are required when a server is set")
	}

	for i, ext := range c.AllowedExtensions {
		c.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}

	return nil
}
