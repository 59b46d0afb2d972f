package store

// SeedBalance is a test helper that sets the balance of a wallet when using the in-memory store.
func SeedBalance(s Store, walletNumber string, amount int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		id, exists := mem.byNumber[walletNumber]
		if !exists {
			return
		}
		w := mem.wallets[id]
		w.Balance = amount
		mem.wallets[id] = w
	}
}
