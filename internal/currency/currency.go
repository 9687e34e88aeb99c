// Package currency keeps the selected currency preference and renders
// amounts in it. The preference lives in the settings record of the
// private partition so it follows the account.
package currency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Rhymond/go-money"

	"munnies/internal/core"
	"munnies/internal/storage"
)

// Currency is one selectable currency.
type Currency struct {
	Code   string
	Name   string
	Symbol string
}

// Supported is the set of selectable currencies.
var Supported = []Currency{
	{"USD", "US Dollar", "$"},
	{"EUR", "Euro", "€"},
	{"GBP", "British Pound", "£"},
	{"CAD", "Canadian Dollar", "C$"},
	{"AUD", "Australian Dollar", "A$"},
	{"JPY", "Japanese Yen", "¥"},
	{"CHF", "Swiss Franc", "CHF"},
	{"CNY", "Chinese Yuan", "¥"},
	{"INR", "Indian Rupee", "₹"},
	{"MXN", "Mexican Peso", "$"},
	{"BRL", "Brazilian Real", "R$"},
	{"KRW", "South Korean Won", "₩"},
	{"SEK", "Swedish Krona", "kr"},
	{"NOK", "Norwegian Krone", "kr"},
	{"DKK", "Danish Krone", "kr"},
	{"NZD", "New Zealand Dollar", "NZ$"},
	{"SGD", "Singapore Dollar", "S$"},
	{"HKD", "Hong Kong Dollar", "HK$"},
}

// DefaultCode is used until the user picks a currency.
const DefaultCode = "USD"

// IsSupported reports whether a code is selectable.
func IsSupported(code string) bool {
	for _, c := range Supported {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Manager caches the selected currency code and persists changes to the
// settings record.
type Manager struct {
	repo *storage.Repository

	mu   sync.RWMutex
	code string
}

// NewManager loads the persisted preference; a load failure falls back to
// the default rather than blocking startup.
func NewManager(ctx context.Context, repo *storage.Repository) *Manager {
	m := &Manager{repo: repo, code: DefaultCode}

	settings, err := repo.GetSettings(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load currency preference, using default",
			"error", err, "default", DefaultCode)
		return m
	}
	if IsSupported(settings.CurrencyCode) {
		m.code = settings.CurrencyCode
	}
	return m
}

// Code returns the active currency code.
func (m *Manager) Code() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.code
}

// SetCurrency switches the active currency and persists it.
func (m *Manager) SetCurrency(ctx context.Context, code string) error {
	if !IsSupported(code) {
		return fmt.Errorf("unsupported currency %q", code)
	}

	settings, err := m.repo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings.CurrencyCode = code
	if err := m.repo.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save currency preference: %w", err)
	}

	m.mu.Lock()
	m.code = code
	m.mu.Unlock()

	slog.InfoContext(ctx, "Currency preference changed", "code", code)
	return nil
}

// Format renders an amount in the active currency, e.g. "-$5.00".
func (m *Manager) Format(amount core.Money) string {
	return money.New(amount.Cents, m.Code()).Display()
}
