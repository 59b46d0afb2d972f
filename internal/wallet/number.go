package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/congo-pay/paywallet/internal/domain"
)

// NumberGenerator draws a candidate wallet number.
type NumberGenerator func() (string, error)

var numberSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.WalletNumberLength), nil)

// RandomNumber draws a uniformly random, zero-padded 13-digit wallet number.
func RandomNumber() (string, error) {
	n, err := rand.Int(rand.Reader, numberSpace)
	if err != nil {
		return "", fmt.Errorf("draw wallet number: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.WalletNumberLength, n.Int64()), nil
}
