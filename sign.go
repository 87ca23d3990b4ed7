package healthvault

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

func loadPrivateKey(privatekey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// SignBytes signs data with the personal_sign (EIP-191) prefix.
func SignBytes(data []byte, privatekey string) ([]byte, error) {
	key, err := loadPrivateKey(privatekey)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(accounts.TextHash(data), key)
}

// RecoverSigner returns the address that produced signature over data.
func RecoverSigner(data, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	// wallets emit V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, fmt.Errorf("invalid signature values")
	}
	pub, err := crypto.SigToPub(accounts.TextHash(data), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func PrivKeyToAddr(privatekey string) (string, error) {
	key, err := loadPrivateKey(privatekey)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// SignTransaction fills in signer and timestamp, then signs the JSON form of tx.
func SignTransaction[T any](method string, args T, privatekey string) (SignedTransaction, error) {
	signer, err := PrivKeyToAddr(privatekey)
	if err != nil {
		return SignedTransaction{}, err
	}

	tx := Transaction[T]{
		Method:   method,
		Args:     args,
		Signer:   signer,
		Nonce:    uuid.NewString(),
		SignedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		return SignedTransaction{}, err
	}

	signature, err := SignBytes(raw, privatekey)
	if err != nil {
		return SignedTransaction{}, err
	}

	return SignedTransaction{
		Transaction: string(raw),
		Signature:   hexutil.Encode(signature),
	}, nil
}

// TransactionID identifies a signed transaction by the bytes the signer
// committed to. Re-encodings of the same signature share one ID.
func TransactionID(st SignedTransaction) string {
	return hexutil.Encode(crypto.Keccak256([]byte(st.Transaction)))
}

// OpenTransaction verifies st and decodes its envelope. The returned address
// is the recovered signer.
func OpenTransaction[T any](st SignedTransaction) (Transaction[T], common.Address, error) {
	var tx Transaction[T]

	signature, err := hexutil.Decode(st.Signature)
	if err != nil {
		return tx, common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}

	signer, err := RecoverSigner([]byte(st.Transaction), signature)
	if err != nil {
		return tx, common.Address{}, err
	}

	err = json.Unmarshal([]byte(st.Transaction), &tx)
	if err != nil {
		return tx, common.Address{}, fmt.Errorf("invalid transaction: %w", err)
	}

	if !SameAddress(tx.Signer, signer.Hex()) {
		return tx, common.Address{}, fmt.Errorf("signer mismatch: declared %s, recovered %s", tx.Signer, signer.Hex())
	}

	return tx, signer, nil
}
