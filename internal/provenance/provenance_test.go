package provenance

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghg-ledger/inventory-engine/internal/inventory"
)

func TestMintAndVerify(t *testing.T) {
	signer := NewSigner("test-secret", "")
	calcID := uuid.New()

	token, err := signer.Mint(calcID, "hash-a", "hash-b", "1.0.0")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	receipt, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, calcID, receipt.CalculationID)
	assert.Equal(t, "hash-a", receipt.InputHash)
	assert.Equal(t, "hash-b", receipt.FactorHash)
	assert.Equal(t, "1.0.0", receipt.EngineVersion)
	assert.False(t, receipt.IssuedAt.IsZero())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewSigner("test-secret", "")
	token, err := signer.Mint(uuid.New(), "hash-a", "hash-b", "1.0.0")
	require.NoError(t, err)

	other := NewSigner("other-secret", "")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidReceipt)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	signer := NewSigner("test-secret", "ledger-a")
	token, err := signer.Mint(uuid.New(), "hash-a", "hash-b", "1.0.0")
	require.NoError(t, err)

	other := NewSigner("test-secret", "ledger-b")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidReceipt)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	signer := NewSigner("test-secret", "")
	_, err := signer.Verify("")
	assert.ErrorIs(t, err, ErrInvalidReceipt)

	_, err = signer.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidReceipt)
}

func TestVerifyCalculation(t *testing.T) {
	signer := NewSigner("test-secret", "")
	calc := &inventory.Calculation{
		ID:            uuid.New(),
		MethodKey:     "flaring",
		EngineVersion: "1.0.0",
		InputHash:     "hash-a",
		FactorHash:    "hash-b",
	}
	token, err := signer.Mint(calc.ID, calc.InputHash, calc.FactorHash, calc.EngineVersion)
	require.NoError(t, err)
	calc.Receipt = token

	receipt, err := signer.VerifyCalculation(calc)
	require.NoError(t, err)
	assert.Equal(t, calc.ID, receipt.CalculationID)

	// A record whose hashes drifted from the receipt fails verification.
	calc.InputHash = "tampered"
	_, err = signer.VerifyCalculation(calc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReceipt)
	assert.Contains(t, err.Error(), "hash mismatch")
}
