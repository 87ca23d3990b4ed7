package healthvault

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestSignAndOpenTransaction(t *testing.T) {
	priv, addr := newKey(t)

	st, err := SignTransaction(MethodUpdateHealthData, UpdateHealthDataArgs{Pointer: "bafy123"}, priv)
	require.NoError(t, err)

	tx, signer, err := OpenTransaction[UpdateHealthDataArgs](st)
	require.NoError(t, err)
	assert.Equal(t, addr, signer.Hex())
	assert.Equal(t, MethodUpdateHealthData, tx.Method)
	assert.Equal(t, "bafy123", tx.Args.Pointer)
}

func TestOpenTransactionRejectsTampering(t *testing.T) {
	priv, _ := newKey(t)

	st, err := SignTransaction(MethodUpdateHealthData, UpdateHealthDataArgs{Pointer: "bafy123"}, priv)
	require.NoError(t, err)

	st.Transaction = st.Transaction[:len(st.Transaction)-1] + " }"
	_, _, err = OpenTransaction[UpdateHealthDataArgs](st)
	assert.Error(t, err)
}

func TestOpenTransactionRejectsForeignSigner(t *testing.T) {
	priv, _ := newKey(t)
	_, other := newKey(t)

	st, err := SignTransaction(MethodRegisterPatient, NoArgs{}, priv)
	require.NoError(t, err)

	// re-sign a body that claims another signer
	forged := `{"method":"registerPatient","args":{},"signer":"` + other + `","signedAt":"2024-01-01T00:00:00Z"}`
	sig, err := SignBytes([]byte(forged), priv)
	require.NoError(t, err)
	st = SignedTransaction{Transaction: forged, Signature: hexutil.Encode(sig)}

	_, _, err = OpenTransaction[NoArgs](st)
	assert.Error(t, err)
}

func TestRecoverSignerAcceptsWalletRecoveryID(t *testing.T) {
	priv, addr := newKey(t)

	sig, err := SignBytes([]byte("hello"), priv)
	require.NoError(t, err)
	sig[64] += 27

	signer, err := RecoverSigner([]byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, addr, signer.Hex())
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"))
	assert.False(t, SameAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"))
	assert.False(t, SameAddress("nope", "nope"))
}

func TestRecoverSignerRejectsHighS(t *testing.T) {
	priv, _ := newKey(t)

	sig, err := SignBytes([]byte("hello"), priv)
	require.NoError(t, err)

	// (r, N-s, v^1) recovers the same key; only the low-S form is accepted
	n := crypto.S256().Params().N
	s := new(big.Int).SetBytes(sig[32:64])
	flipped := make([]byte, 65)
	copy(flipped, sig[:32])
	new(big.Int).Sub(n, s).FillBytes(flipped[32:64])
	flipped[64] = sig[64] ^ 1

	_, err = RecoverSigner([]byte("hello"), flipped)
	assert.Error(t, err)
}

func TestTransactionIDIgnoresSignatureEncoding(t *testing.T) {
	priv, _ := newKey(t)

	st, err := SignTransaction(MethodRegisterPatient, NoArgs{}, priv)
	require.NoError(t, err)

	sig, err := hexutil.Decode(st.Signature)
	require.NoError(t, err)
	sig[64] += 27
	reencoded := SignedTransaction{Transaction: st.Transaction, Signature: hexutil.Encode(sig)}

	_, _, err = OpenTransaction[NoArgs](reencoded)
	require.NoError(t, err)
	assert.Equal(t, TransactionID(st), TransactionID(reencoded))

	other, err := SignTransaction(MethodRegisterPatient, NoArgs{}, priv)
	require.NoError(t, err)
	assert.NotEqual(t, TransactionID(st), TransactionID(other))
}
