package client

import (
	"context"
	"fmt"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/encryption"
)

// UploadRecord encrypts plaintext under a fresh key, stores the ciphertext,
// points the patient's registry entry at it and deposits the key. The patient
// must already be registered.
func (c *Client) UploadRecord(ctx context.Context, privatekey string, plaintext []byte) (string, error) {
	patient, err := healthvault.PrivKeyToAddr(privatekey)
	if err != nil {
		return "", err
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		return "", err
	}
	record, err := encryption.Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	data, err := record.Marshal()
	if err != nil {
		return "", err
	}

	token, err := c.Login(ctx, privatekey, healthvault.RolePatient)
	if err != nil {
		return "", err
	}

	locator, err := c.PutBlob(ctx, token, data)
	if err != nil {
		return "", fmt.Errorf("failed to store ciphertext: %w", err)
	}
	// the key goes first so the pointer never names unreadable content
	if err := c.StoreKey(ctx, token, patient, key); err != nil {
		return "", fmt.Errorf("failed to store key: %w", err)
	}
	if _, err := c.UpdateHealthData(ctx, privatekey, locator); err != nil {
		return "", fmt.Errorf("failed to update registry: %w", err)
	}
	return locator, nil
}

// DownloadRecord resolves the patient's pointer, fetches the ciphertext and
// the key, and returns the plaintext. role is the caller's token role.
func (c *Client) DownloadRecord(ctx context.Context, privatekey, role, patient string) ([]byte, error) {
	token, err := c.Login(ctx, privatekey, role)
	if err != nil {
		return nil, err
	}

	pointer, err := c.GetHealthData(ctx, token, patient)
	if err != nil {
		return nil, err
	}
	if pointer == "" {
		return nil, fmt.Errorf("patient %s has no health data", patient)
	}

	data, err := c.GetBlob(ctx, pointer)
	if err != nil {
		return nil, err
	}
	record, err := encryption.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	key, err := c.GetKey(ctx, token, patient)
	if err != nil {
		return nil, err
	}
	return encryption.Decrypt(record, key)
}
