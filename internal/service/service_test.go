package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/config"
	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/infra/database"
)

// hardhat development accounts #1 and #2
const (
	alicePriv = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	bobPriv   = "5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func newAuth() *AuthService {
	return NewAuthService(config.Auth{Secret: "test-secret", Issuer: "healthvault", TokenTTL: "1h"})
}

func TestIssueAndVerifyToken(t *testing.T) {
	auth := newAuth()
	ctx := context.Background()

	st, err := healthvault.SignTransaction(healthvault.MethodLogin, healthvault.LoginArgs{Role: healthvault.RoleProvider}, bobPriv)
	require.NoError(t, err)

	token, err := auth.IssueToken(ctx, st)
	require.NoError(t, err)

	id, err := auth.AuthJwt(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, bob, id.Address)
	assert.Equal(t, healthvault.RoleProvider, id.Role)

	st, err = healthvault.SignTransaction(healthvault.MethodLogin, healthvault.LoginArgs{}, alicePriv)
	require.NoError(t, err)
	token, err = auth.IssueToken(ctx, st)
	require.NoError(t, err)
	id, err = auth.AuthJwt(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice, id.Address)
	assert.Equal(t, healthvault.RolePatient, id.Role)
}

func TestIssueTokenRejects(t *testing.T) {
	auth := newAuth()
	ctx := context.Background()

	st, err := healthvault.SignTransaction(healthvault.MethodRegisterPatient, healthvault.LoginArgs{}, alicePriv)
	require.NoError(t, err)
	_, err = auth.IssueToken(ctx, st)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	st, err = healthvault.SignTransaction(healthvault.MethodLogin, healthvault.LoginArgs{Role: healthvault.RoleService}, alicePriv)
	require.NoError(t, err)
	_, err = auth.IssueToken(ctx, st)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	st, err = healthvault.SignTransaction(healthvault.MethodLogin, healthvault.LoginArgs{}, alicePriv)
	require.NoError(t, err)
	auth.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = auth.IssueToken(ctx, st)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	st.Signature = st.Signature[:len(st.Signature)-4] + "0000"
	_, err = newAuth().IssueToken(ctx, st)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAuthJwtRejects(t *testing.T) {
	auth := newAuth()
	ctx := context.Background()

	token, err := auth.Issue(ctx, domain.Identity{Address: alice, Role: healthvault.RolePatient})
	require.NoError(t, err)

	other := NewAuthService(config.Auth{Secret: "other-secret", Issuer: "healthvault"})
	_, err = other.AuthJwt(ctx, token)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	foreign := NewAuthService(config.Auth{Secret: "test-secret", Issuer: "someone-else"})
	_, err = foreign.AuthJwt(ctx, token)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = auth.AuthJwt(ctx, "not.a.token")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	expired := newAuth()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = expired.Issue(ctx, domain.Identity{Address: alice})
	require.NoError(t, err)
	_, err = auth.AuthJwt(ctx, token)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSignalRealtime(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := database.NewRedis(mr.Addr(), "", 0)

	signal := NewSignalService(rdb, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan []string)
	output := signal.Realtime(ctx, input)
	input <- []string{alice.Hex(), "garbage"}

	channel := Channel(alice.Hex())
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 1
	}, time.Second, 10*time.Millisecond)

	// events of other patients are not forwarded
	require.NoError(t, signal.Publish(ctx, domain.Event{TxID: "tx-0", Kind: domain.EventPatientRegistered, Patient: bob}))
	require.NoError(t, signal.Publish(ctx, domain.Event{TxID: "tx-1", Kind: domain.EventPatientRegistered, Patient: alice}))

	select {
	case msg := <-output:
		assert.Equal(t, "tx-1", msg.TxID)
		assert.Equal(t, alice.Hex(), msg.Patient)
		assert.Equal(t, string(domain.EventPatientRegistered), msg.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range output {
	}
}

type recordingSink struct {
	events []domain.Event
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, event domain.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestMultiPublisher(t *testing.T) {
	failing := &recordingSink{err: errors.New("down")}
	ok := &recordingSink{}
	p := NewMultiPublisher(nil, failing, ok)

	err := p.Publish(context.Background(), domain.Event{TxID: "tx-1"})
	assert.Error(t, err)
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)

	assert.NoError(t, NopPublisher{}.Publish(context.Background(), domain.Event{}))
}

func TestReplayGuard(t *testing.T) {
	g := NewReplayGuard(5 * time.Minute)
	now := time.Now()

	require.NoError(t, g.Check(now, "0xAA"))
	assert.ErrorIs(t, g.Check(now, "0xaa"), domain.ErrForbidden)
	assert.NoError(t, g.Check(now, "0xbb"))

	assert.ErrorIs(t, g.Check(now.Add(-10*time.Minute), "0xcc"), domain.ErrForbidden)
	assert.ErrorIs(t, g.Check(now.Add(10*time.Minute), "0xdd"), domain.ErrForbidden)
}
