package main

import (
	"encoding/json"
	"fmt"
	"os"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

// Receipt is what a participant keeps between commit and reveal.
type Receipt struct {
	UniID    string `json:"uni_id"`
	Number   int    `json:"number"`
	Nonce    string `json:"nonce"`
	Preimage string `json:"preimage"`
	Commit   string `json:"commit"`
}

// NewReceipt builds the receipt for a commitment.
func NewReceipt(uniID string, number int, nonce string) Receipt {
	return Receipt{
		UniID:    uniID,
		Number:   number,
		Nonce:    nonce,
		Preimage: consensusdomain.Preimage(uniID, fmt.Sprint(number), nonce),
		Commit:   consensusdomain.Commit(uniID, number, nonce),
	}
}

// Check reports whether the stored digest still matches the stored values.
func (r Receipt) Check() error {
	if got := consensusdomain.Commit(r.UniID, r.Number, r.Nonce); got != r.Commit {
		return fmt.Errorf("receipt digest %s does not match its values (expected %s)", r.Commit, got)
	}
	return nil
}

func writeReceipt(path string, r Receipt) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

func readReceipt(path string) (Receipt, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to read receipt: %w", err)
	}
	var r Receipt
	if err := json.Unmarshal(b, &r); err != nil {
		return Receipt{}, fmt.Errorf("failed to parse receipt %s: %w", path, err)
	}
	return r, r.Check()
}
