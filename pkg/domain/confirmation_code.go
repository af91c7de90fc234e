package domain

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 8
	codePrefix   = "DONOR-"
)

// NewConfirmationCode generates the opaque shared proof-of-transaction token
// exchanged between donor and requester, e.g. "DONOR-4F8K2Q1Z".
func NewConfirmationCode() string {
	return codePrefix + gonanoid.MustGenerate(codeAlphabet, codeLength)
}
