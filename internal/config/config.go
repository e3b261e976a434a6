package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/jask/timebill/internal/billing"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "TIMEBILL_CONFIG"

var ErrNoDefaultRate = errors.New("hourly_rates.default must be greater than 0")

// Config holds application configuration.
type Config struct {
	Biller           BillerConfig            `mapstructure:"biller"`
	Defaults         DefaultsConfig          `mapstructure:"defaults"`
	InvoiceNumbering NumberingConfig         `mapstructure:"invoice_numbering"`
	Latex            LatexConfig             `mapstructure:"latex"`
	Clients          map[string]ClientConfig `mapstructure:"clients" validate:"dive"`
	HourlyRates      map[string]float64      `mapstructure:"hourly_rates"`
	Output           OutputConfig            `mapstructure:"output"`
	Database         DatabaseConfig          `mapstructure:"database"`
	Timewarrior      TimewarriorConfig       `mapstructure:"timewarrior"`

	// Path is the file the config was read from, or would be written to.
	Path string `mapstructure:"-"`
	// Loaded is false when no config file existed and defaults were used.
	Loaded bool `mapstructure:"-"`
}

type AddressConfig struct {
	Street  string `mapstructure:"street" validate:"required"`
	City    string `mapstructure:"city" validate:"required"`
	State   string `mapstructure:"state" validate:"required"`
	ZipCode string `mapstructure:"zip_code" validate:"required"`
	Country string `mapstructure:"country"`
}

type BillerConfig struct {
	Name    string        `mapstructure:"name" validate:"required"`
	Email   string        `mapstructure:"email" validate:"omitempty,email"`
	Phone   string        `mapstructure:"phone"`
	TaxID   string        `mapstructure:"tax_id"`
	Website string        `mapstructure:"website"`
	Address AddressConfig `mapstructure:"address"`
}

type DefaultsConfig struct {
	TaxRate             float64 `mapstructure:"tax_rate" validate:"gte=0"`
	PaymentTerms        string  `mapstructure:"payment_terms"`
	PaymentInstructions string  `mapstructure:"payment_instructions"`
	Notes               string  `mapstructure:"notes"`
	TermsAndConditions  string  `mapstructure:"terms_and_conditions"`
}

type NumberingConfig struct {
	Prefix string `mapstructure:"prefix"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=hash"`
}

type LatexConfig struct {
	Command      string `mapstructure:"command"`
	TemplatePath string `mapstructure:"template_path"`
}

// ClientConfig is one entry under clients. Its map key is the client id.
type ClientConfig struct {
	Name         string             `mapstructure:"name" validate:"required"`
	Prefix       string             `mapstructure:"prefix" validate:"required"`
	Aliases      []string           `mapstructure:"aliases"`
	ContactEmail string             `mapstructure:"contact_email" validate:"omitempty,email"`
	ContactPhone string             `mapstructure:"contact_phone"`
	TaxID        string             `mapstructure:"tax_id"`
	Address      AddressConfig      `mapstructure:"address" validate:"-"`
	Rates        map[string]float64 `mapstructure:"rates"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory"`
	Format    string `mapstructure:"format" validate:"oneof=pdf tex both"`
}

// DatabaseConfig holds sqlite settings for the invoice ledger.
type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

type TimewarriorConfig struct {
	Command string        `mapstructure:"command"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultPath is ~/.config/timewarrior/invoice/config.yaml.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "timewarrior", "invoice", "config.yaml")
}

// ResolvePath picks the explicit path, then $TIMEBILL_CONFIG, then DefaultPath.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("biller.name", "Mr Socially Necessary Labour Time")
	v.SetDefault("biller.address.street", "[Your Street Address]")
	v.SetDefault("biller.address.city", "[Your City]")
	v.SetDefault("biller.address.state", "[Your State]")
	v.SetDefault("biller.address.zip_code", "[Your ZIP]")
	v.SetDefault("biller.address.country", "USA")
	v.SetDefault("defaults.tax_rate", 0.0)
	v.SetDefault("defaults.payment_terms", "Net 30")
	v.SetDefault("defaults.payment_instructions", "")
	v.SetDefault("defaults.notes", "")
	v.SetDefault("defaults.terms_and_conditions", "")
	v.SetDefault("invoice_numbering.prefix", "")
	v.SetDefault("invoice_numbering.format", "hash")
	v.SetDefault("latex.command", "pdflatex")
	v.SetDefault("latex.template_path", "")
	v.SetDefault("output.directory", "invoices")
	v.SetDefault("output.format", "pdf")
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "timebill", "ledger.db"))
	v.SetDefault("database.enabled", true)
	v.SetDefault("timewarrior.command", "timew")
	v.SetDefault("timewarrior.timeout", "30s")
}

// DefaultHourlyRates is the rate table used when the config defines none.
func DefaultHourlyRates() map[string]float64 {
	return map[string]float64{
		"default":       150,
		"general":       150,
		"development":   150,
		"programming":   150,
		"coding":        150,
		"consulting":    200,
		"testing":       100,
		"qa":            100,
		"documentation": 120,
		"docs":          120,
		"design":        180,
		"ui":            180,
		"ux":            180,
		"research":      160,
		"planning":      140,
		"meeting":       140,
		"review":        130,
		"debugging":     140,
		"bugfix":        140,
		"maintenance":   130,
		"support":       120,
		"training":      180,
	}
}

// Default returns the built-in configuration without reading any file.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// defaults are static and always decode
	_ = v.Unmarshal(&c)
	c.finish(DefaultPath(), false)
	return c
}

// Load reads configuration from file and env. Env var overrides use prefix TIMEBILL_.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	path = ResolvePath(path)

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	v.SetEnvPrefix("TIMEBILL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		loaded = false
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.finish(path, loaded)
	return c, nil
}

func (c *Config) finish(path string, loaded bool) {
	c.Path = path
	c.Loaded = loaded
	if len(c.HourlyRates) == 0 {
		c.HourlyRates = DefaultHourlyRates()
	}
	if c.Clients == nil {
		c.Clients = map[string]ClientConfig{}
	}
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("biller.name", cfg.Biller.Name)
	v.Set("biller.email", cfg.Biller.Email)
	v.Set("biller.phone", cfg.Biller.Phone)
	v.Set("biller.tax_id", cfg.Biller.TaxID)
	v.Set("biller.website", cfg.Biller.Website)
	v.Set("biller.address", addressMap(cfg.Biller.Address))
	v.Set("defaults.tax_rate", cfg.Defaults.TaxRate)
	v.Set("defaults.payment_terms", cfg.Defaults.PaymentTerms)
	v.Set("defaults.payment_instructions", cfg.Defaults.PaymentInstructions)
	v.Set("defaults.notes", cfg.Defaults.Notes)
	v.Set("defaults.terms_and_conditions", cfg.Defaults.TermsAndConditions)
	v.Set("invoice_numbering.prefix", cfg.InvoiceNumbering.Prefix)
	v.Set("invoice_numbering.format", cfg.InvoiceNumbering.Format)
	v.Set("latex.command", cfg.Latex.Command)
	v.Set("latex.template_path", cfg.Latex.TemplatePath)
	v.Set("hourly_rates", cfg.HourlyRates)
	v.Set("output.directory", cfg.Output.Directory)
	v.Set("output.format", cfg.Output.Format)
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.enabled", cfg.Database.Enabled)
	v.Set("timewarrior.command", cfg.Timewarrior.Command)
	v.Set("timewarrior.timeout", cfg.Timewarrior.Timeout.String())

	clients := make(map[string]any, len(cfg.Clients))
	for id, cl := range cfg.Clients {
		clients[id] = map[string]any{
			"name":          cl.Name,
			"prefix":        cl.Prefix,
			"aliases":       cl.Aliases,
			"contact_email": cl.ContactEmail,
			"contact_phone": cl.ContactPhone,
			"tax_id":        cl.TaxID,
			"address":       addressMap(cl.Address),
			"rates":         cl.Rates,
		}
	}
	v.Set("clients", clients)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func addressMap(a AddressConfig) map[string]any {
	return map[string]any{
		"street":   a.Street,
		"city":     a.City,
		"state":    a.State,
		"zip_code": a.ZipCode,
		"country":  a.Country,
	}
}

// Client looks up a client by id. Ids are case-insensitive.
func (c Config) Client(id string) (ClientConfig, bool) {
	cl, ok := c.Clients[strings.ToLower(strings.TrimSpace(id))]
	return cl, ok
}

// ClientIDs returns the configured client ids, sorted.
func (c Config) ClientIDs() []string {
	ids := make([]string, 0, len(c.Clients))
	for id := range c.Clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aliases returns every client id and alias, which the classifier never
// treats as a task.
func (c Config) Aliases() []string {
	var out []string
	for _, id := range c.ClientIDs() {
		out = append(out, id)
		for _, a := range c.Clients[id].Aliases {
			out = append(out, strings.ToLower(strings.TrimSpace(a)))
		}
	}
	return out
}

// RateTable snapshots the configured rates. Client rates are registered
// under the client id and each of its aliases; the table matches keys
// case-insensitively since viper lower-cases them on load.
func (c Config) RateTable() (billing.RateTable, error) {
	def, ok := c.HourlyRates[billing.DefaultRateKey]
	if !ok || def <= 0 {
		return billing.RateTable{}, ErrNoDefaultRate
	}

	table := billing.NewRateTable(toDecimals(c.HourlyRates), decimal.NewFromFloat(def))
	for _, id := range c.ClientIDs() {
		cl := c.Clients[id]
		rates := toDecimals(cl.Rates)
		table = table.WithClient(id, rates)
		for _, alias := range cl.Aliases {
			table = table.WithClient(alias, rates)
		}
	}
	return table, nil
}

func toDecimals(in map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = decimal.NewFromFloat(v)
	}
	return out
}

// TaxRate is defaults.tax_rate as a decimal.
func (c Config) TaxRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Defaults.TaxRate)
}

// BillerParty converts the biller section for an invoice.
func (c Config) BillerParty() billing.Biller {
	b := c.Biller
	return billing.Biller{
		Name:    b.Name,
		Address: b.Address.toBilling(),
		Email:   b.Email,
		Phone:   b.Phone,
		TaxID:   b.TaxID,
		Website: b.Website,
	}
}

// ClientParty converts a client section for an invoice.
func (c Config) ClientParty(id string) (billing.Client, bool) {
	cl, ok := c.Client(id)
	if !ok {
		return billing.Client{}, false
	}
	return billing.Client{
		ID:      strings.ToLower(strings.TrimSpace(id)),
		Name:    cl.Name,
		Prefix:  cl.Prefix,
		Address: cl.Address.toBilling(),
		Email:   cl.ContactEmail,
		Phone:   cl.ContactPhone,
		TaxID:   cl.TaxID,
	}, true
}

func (a AddressConfig) toBilling() billing.Address {
	country := a.Country
	if country == "" {
		country = "USA"
	}
	return billing.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: country,
	}
}
