// Package encryption implements the record cipher: AES-256-CBC with a fresh
// random IV per call and PKCS#7 padding. It provides confidentiality only;
// a tampered ciphertext either fails to unpad or decrypts to garbage.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

// ErrDecryption is returned for any failure to reverse Encrypt.
var ErrDecryption = errors.New("decryption failed")

// EncryptedRecord is what gets stored in the content store, serialized as
// {"iv","encryptedData"} with hex-encoded values.
type EncryptedRecord struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"encryptedData"`
}

// GenerateKey returns 32 random bytes, hex encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// ValidKey reports whether key is a hex-encoded 256-bit key.
func ValidKey(key string) bool {
	raw, err := hex.DecodeString(key)
	return err == nil && len(raw) == KeySize
}

func newBlock(key string) (cipher.Block, error) {
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d hex-encoded bytes", ErrDecryption, KeySize)
	}
	return aes.NewCipher(raw)
}

func Encrypt(plaintext []byte, key string) (EncryptedRecord, error) {
	block, err := newBlock(key)
	if err != nil {
		return EncryptedRecord{}, err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedRecord{}, fmt.Errorf("generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return EncryptedRecord{
		IV:         hex.EncodeToString(iv),
		Ciphertext: hex.EncodeToString(out),
	}, nil
}

func Decrypt(record EncryptedRecord, key string) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}

	iv, err := hex.DecodeString(record.IV)
	if err != nil || len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d hex-encoded bytes", ErrDecryption, IVSize)
	}

	ciphertext, err := hex.DecodeString(record.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not hex", ErrDecryption)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryption)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	return unpad(out, aes.BlockSize)
}

// Marshal returns the serialized record, as written to the content store.
func (r EncryptedRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func Unmarshal(data []byte) (EncryptedRecord, error) {
	var r EncryptedRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return EncryptedRecord{}, fmt.Errorf("%w: malformed record: %v", ErrDecryption, err)
	}
	if r.IV == "" || r.Ciphertext == "" {
		return EncryptedRecord{}, fmt.Errorf("%w: record is missing iv or ciphertext", ErrDecryption)
	}
	return r, nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return data[:len(data)-n], nil
}
