// Package provenance mints and verifies signed receipts for calculation
// records. A receipt binds the calculation id, its snapshot hashes and the
// engine version into an HS256 JWT, so anyone holding the secret can confirm
// a reported figure traces back to an unmodified stored calculation.
package provenance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ghg-ledger/inventory-engine/internal/inventory"
)

// DefaultIssuer is stamped into receipts when no issuer is configured.
const DefaultIssuer = "inventory-engine"

// ErrInvalidReceipt wraps parsing and validation errors.
var ErrInvalidReceipt = errors.New("invalid receipt")

// Receipt is the decoded payload of a calculation receipt.
type Receipt struct {
	CalculationID uuid.UUID `json:"calculation_id"`
	InputHash     string    `json:"input_hash"`
	FactorHash    string    `json:"factor_hash"`
	EngineVersion string    `json:"engine_version"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Signer mints and verifies calculation receipts with a shared secret.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner creates a signer for the given secret. An empty issuer falls
// back to DefaultIssuer.
func NewSigner(secret, issuer string) *Signer {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Signer{secret: []byte(secret), issuer: issuer}
}

// Mint signs a receipt for a calculation.
func (s *Signer) Mint(calculationID uuid.UUID, inputHash, factorHash, engineVersion string) (string, error) {
	claims := jwt.MapClaims{
		"iss":            s.issuer,
		"sub":            calculationID.String(),
		"iat":            time.Now().UTC().Unix(),
		"input_hash":     inputHash,
		"factor_hash":    factorHash,
		"engine_version": engineVersion,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt: %w", err)
	}
	return signed, nil
}

// Verify validates a receipt token and returns its payload.
func (s *Signer) Verify(token string) (*Receipt, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidReceipt
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidReceipt
	}

	subject, _ := claims["sub"].(string)
	calculationID, err := uuid.Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidReceipt)
	}
	inputHash, _ := claims["input_hash"].(string)
	if inputHash == "" {
		return nil, fmt.Errorf("%w: missing input hash", ErrInvalidReceipt)
	}
	factorHash, _ := claims["factor_hash"].(string)
	engineVersion, _ := claims["engine_version"].(string)
	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return nil, fmt.Errorf("%w: missing issued-at", ErrInvalidReceipt)
	}

	return &Receipt{
		CalculationID: calculationID,
		InputHash:     inputHash,
		FactorHash:    factorHash,
		EngineVersion: engineVersion,
		IssuedAt:      issuedAt.Time,
	}, nil
}

// VerifyCalculation validates the receipt carried by a stored calculation
// and checks that it matches the record it is attached to.
func (s *Signer) VerifyCalculation(calc *inventory.Calculation) (*Receipt, error) {
	receipt, err := s.Verify(calc.Receipt)
	if err != nil {
		return nil, err
	}
	if receipt.CalculationID != calc.ID {
		return nil, fmt.Errorf("%w: calculation id mismatch", ErrInvalidReceipt)
	}
	if receipt.InputHash != calc.InputHash || receipt.FactorHash != calc.FactorHash {
		return nil, fmt.Errorf("%w: snapshot hash mismatch", ErrInvalidReceipt)
	}
	if receipt.EngineVersion != calc.EngineVersion {
		return nil, fmt.Errorf("%w: engine version mismatch", ErrInvalidReceipt)
	}
	return receipt, nil
}
