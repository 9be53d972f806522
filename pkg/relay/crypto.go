package relay

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix/crypto/cryptohelper"
)

// initCrypto attaches the mautrix crypto helper when encryption is
// enabled, backed by a SQLite store at the configured path. All session
// and device handling stays inside the library.
func (a *Adapter) initCrypto(ctx context.Context) error {
	if !a.cfg.Encryption.Enabled || a.mx == nil {
		return nil
	}
	helper, err := cryptohelper.NewCryptoHelper(a.mx, []byte(a.cfg.Encryption.PickleKey), a.cfg.Path)
	if err != nil {
		return err
	}
	if err = helper.Init(ctx); err != nil {
		return err
	}
	a.mx.Crypto = helper
	a.crypto = helper
	return nil
}
