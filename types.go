package healthvault

import (
	"time"
)

// Registry transaction methods.
const (
	MethodRegisterPatient      = "registerPatient"
	MethodUpdateHealthData     = "updateHealthData"
	MethodAuthorizeProvider    = "authorizeProvider"
	MethodRevokeProvider       = "revokeProvider"
	MethodRequestDecryptionKey = "requestDecryptionKey"
	MethodLogin                = "login"
)

// Token roles.
const (
	RolePatient  = "patient"
	RoleProvider = "provider"
	RoleService  = "service"
)

// Transaction is the signed unit submitted to the registry ledger.
type Transaction[T any] struct {
	Method   string    `json:"method"`
	Args     T         `json:"args"`
	Signer   string    `json:"signer"`
	Nonce    string    `json:"nonce,omitempty"`
	SignedAt time.Time `json:"signedAt"`
}

type SignedTransaction struct {
	Transaction string `json:"transaction"`
	Signature   string `json:"signature"`
}

type NoArgs struct{}

type UpdateHealthDataArgs struct {
	Pointer string `json:"pointer"`
}

type ProviderArgs struct {
	Provider string `json:"provider"`
}

type PatientArgs struct {
	Patient string `json:"patient"`
}

type LoginArgs struct {
	Role string `json:"role"`
}

// EventMessage is the wire form of a registry event on the realtime channels.
type EventMessage struct {
	TxID      string    `json:"txId"`
	Kind      string    `json:"kind"`
	Patient   string    `json:"patient"`
	Provider  string    `json:"provider,omitempty"`
	Pointer   string    `json:"pointer,omitempty"`
	Requester string    `json:"requester,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes carried in the "code" field of error responses.
const (
	CodeInvalidArgument   = "invalid_argument"
	CodeDecryption        = "decryption_failed"
	CodeUnauthenticated   = "unauthenticated"
	CodeForbidden         = "forbidden"
	CodeAccessDenied      = "access_denied"
	CodeNotFound          = "not_found"
	CodeKeyNotFound       = "key_not_found"
	CodeBlobNotFound      = "blob_not_found"
	CodeAlreadyRegistered = "already_registered"
	CodeNotRegistered     = "not_registered"
	CodeAlreadyAuthorized = "already_authorized"
	CodeNotAuthorized     = "not_authorized"
	CodeStorageFailure    = "storage_failure"
	CodeInternal          = "internal"
)
