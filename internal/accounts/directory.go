package accounts

import (
	"context"
	"errors"
	"strings"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is what the account service knows about a player.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Directory looks up users by account id.
type Directory interface {
	Lookup(ctx context.Context, accountID string) (*Account, error)
}

// StaticDirectory serves a fixed set of accounts. The zero value is empty.
type StaticDirectory struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewStaticDirectory(list ...Account) *StaticDirectory {
	d := &StaticDirectory{accounts: make(map[string]Account, len(list))}
	for _, a := range list {
		d.accounts[a.ID] = a
	}
	return d
}

func (d *StaticDirectory) Put(a Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accounts == nil {
		d.accounts = make(map[string]Account)
	}
	d.accounts[a.ID] = a
}

func (d *StaticDirectory) Lookup(ctx context.Context, accountID string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

// GeneratedName returns a random two-word name such as "brave-otter".
func GeneratedName() string { return petname.Generate(2, "-") }

// ResolveName picks the display name for a joining player: the requested
// name, then the directory's name for accountID, then a generated one.
// Directory failures are logged and skipped.
func ResolveName(ctx context.Context, dir Directory, requested, accountID string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	if dir != nil && strings.TrimSpace(accountID) != "" {
		a, err := dir.Lookup(ctx, accountID)
		switch {
		case err == nil && a != nil && strings.TrimSpace(a.DisplayName) != "":
			return strings.TrimSpace(a.DisplayName)
		case err != nil && !errors.Is(err, ErrAccountNotFound):
			obslog.L().Warn("account_lookup_error", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	return GeneratedName()
}
