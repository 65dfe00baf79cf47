package domain

import (
	"crypto/rand"
	"fmt"
)

const (
	orderNumberPrefix    = "LL-"
	orderNumberLength    = 10
	trackingNumberPrefix = "LLTN-"
	trackingNumberLength = 8

	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewOrderNumber returns a customer-facing order number such as LL-7K2M9QX1AB.
func NewOrderNumber() (string, error) {
	s, err := randomCode(orderNumberLength)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return orderNumberPrefix + s, nil
}

// NewTrackingNumber returns a tracking number such as LLTN-4HZ81QPD.
func NewTrackingNumber() (string, error) {
	s, err := randomCode(trackingNumberLength)
	if err != nil {
		return "", fmt.Errorf("generate tracking number: %w", err)
	}
	return trackingNumberPrefix + s, nil
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 256 % 36 leaves a slight bias toward the first letters; uniqueness is
	// enforced by the database, not by the distribution.
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf), nil
}
