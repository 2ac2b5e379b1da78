package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/services"
)

// verifyAccounts prints one line per identity and fails if any account
// breaks an invariant.
func verifyAccounts(ctx context.Context, store database.AccountStore, ledger *services.LedgerService, identities []string, out io.Writer) error {
	failed := 0
	for _, identity := range identities {
		acct, err := store.Get(ctx, services.NormalizeIdentity(identity))
		if err == nil {
			err = ledger.Verify(acct)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", identity, err)
			continue
		}
		fmt.Fprintf(out, "OK   %s balance=%d activities=%d\n", acct.Identity, acct.Balance, len(acct.ActivityLog))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d accounts failed verification", failed, len(identities))
	}
	return nil
}
