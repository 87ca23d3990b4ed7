package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/present/rest/middleware"
	"github.com/totegamma/healthvault/internal/present/rest/presenter"
	"github.com/totegamma/healthvault/internal/service"
	"github.com/totegamma/healthvault/internal/usecase"
)

type RegistryHandler struct {
	registry *usecase.RegistryUsecase
	auth     *service.AuthService
	authMw   *middleware.AuthMiddleware
	replay   *service.ReplayGuard
	signal   *service.SignalService
	logger   *zap.Logger
}

// NewRegistryHandler builds the registry surface. signal may be nil, in which
// case /realtime is not served.
func NewRegistryHandler(
	registry *usecase.RegistryUsecase,
	auth *service.AuthService,
	authMw *middleware.AuthMiddleware,
	replay *service.ReplayGuard,
	signal *service.SignalService,
	logger *zap.Logger,
) *RegistryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryHandler{
		registry: registry,
		auth:     auth,
		authMw:   authMw,
		replay:   replay,
		signal:   signal,
		logger:   logger.With(zap.String("module", "registry")),
	}
}

func (h *RegistryHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/tx", h.handleTx)
	e.POST("/auth/token", h.handleAuthToken)
	e.GET("/patients/:address/registered", h.handleRegistered)
	e.GET("/patients/:address/providers/:provider", h.handleProviderAuthorized)
	e.GET("/service/patients/:address/providers/:provider", h.handleProviderAuthorized,
		h.authMw.RequireIdentity, middleware.RequireRole(healthvault.RoleService))
	e.GET("/patients/:address/data", h.handleData, h.authMw.RequireIdentity)
	e.GET("/patients/:address/events", h.handleEvents, h.authMw.RequireIdentity)
	if h.signal != nil {
		e.GET("/realtime", h.handleRealtime, h.authMw.RequireIdentity)
	}
}

func (h *RegistryHandler) handleTx(c echo.Context) error {
	ctx := c.Request().Context()

	var st healthvault.SignedTransaction
	err := c.Bind(&st)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	tx, signer, err := healthvault.OpenTransaction[json.RawMessage](st)
	if err != nil {
		return presenter.Forbidden(c, err.Error())
	}

	if h.replay != nil {
		if err := h.replay.Check(tx.SignedAt, healthvault.TransactionID(st)); err != nil {
			return presenter.Error(c, err)
		}
	}

	event, err := h.apply(ctx, signer, tx.Method, tx.Args)
	if err != nil {
		return presenter.Error(c, err)
	}

	return presenter.OK(c, echo.Map{"status": "ok", "txId": event.TxID})
}

func (h *RegistryHandler) apply(ctx context.Context, signer common.Address, method string, raw json.RawMessage) (domain.Event, error) {
	switch method {
	case healthvault.MethodRegisterPatient:
		return h.registry.RegisterPatient(ctx, signer)

	case healthvault.MethodUpdateHealthData:
		var args healthvault.UpdateHealthDataArgs
		if err := decodeArgs(raw, &args); err != nil {
			return domain.Event{}, err
		}
		return h.registry.UpdateHealthData(ctx, signer, args.Pointer)

	case healthvault.MethodAuthorizeProvider, healthvault.MethodRevokeProvider:
		var args healthvault.ProviderArgs
		if err := decodeArgs(raw, &args); err != nil {
			return domain.Event{}, err
		}
		provider, err := healthvault.ParseAddress(args.Provider)
		if err != nil {
			return domain.Event{}, errors.Wrap(domain.ErrInvalidArgument, "invalid provider address")
		}
		if method == healthvault.MethodAuthorizeProvider {
			return h.registry.AuthorizeProvider(ctx, signer, provider)
		}
		return h.registry.RevokeProvider(ctx, signer, provider)

	case healthvault.MethodRequestDecryptionKey:
		var args healthvault.PatientArgs
		if err := decodeArgs(raw, &args); err != nil {
			return domain.Event{}, err
		}
		patient, err := healthvault.ParseAddress(args.Patient)
		if err != nil {
			return domain.Event{}, errors.Wrap(domain.ErrInvalidArgument, "invalid patient address")
		}
		return h.registry.RequestDecryptionKey(ctx, signer, patient)
	}

	return domain.Event{}, errors.Wrapf(domain.ErrInvalidArgument, "unknown method %q", method)
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.Wrap(domain.ErrInvalidArgument, "missing args")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(domain.ErrInvalidArgument, err.Error())
	}
	return nil
}

func (h *RegistryHandler) handleAuthToken(c echo.Context) error {
	ctx := c.Request().Context()

	var st healthvault.SignedTransaction
	err := c.Bind(&st)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	token, err := h.auth.IssueToken(ctx, st)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"token": token})
}

func (h *RegistryHandler) handleRegistered(c echo.Context) error {
	patient, err := addressParam(c, "address")
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid patient address")
	}
	return presenter.OK(c, echo.Map{
		"registered": h.registry.IsPatientRegistered(c.Request().Context(), patient),
	})
}

func (h *RegistryHandler) handleProviderAuthorized(c echo.Context) error {
	patient, err := addressParam(c, "address")
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid patient address")
	}
	provider, err := addressParam(c, "provider")
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid provider address")
	}

	authorized, err := h.registry.CheckProviderAuthorized(c.Request().Context(), patient, provider)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"authorized": authorized})
}

func (h *RegistryHandler) handleData(c echo.Context) error {
	ctx := c.Request().Context()

	patient, err := addressParam(c, "address")
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid patient address")
	}

	pointer, err := h.registry.GetHealthData(ctx, identity(c).Address, patient)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"pointer": pointer})
}

func (h *RegistryHandler) handleEvents(c echo.Context) error {
	ctx := c.Request().Context()

	patient, err := addressParam(c, "address")
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid patient address")
	}

	events, err := h.registry.Events(ctx, identity(c).Address, patient)
	if err != nil {
		return presenter.Error(c, err)
	}

	messages := make([]healthvault.EventMessage, 0, len(events))
	for _, e := range events {
		messages = append(messages, e.Message())
	}
	return presenter.OK(c, messages)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Patients []string `json:"patients"`
}

func (h *RegistryHandler) handleRealtime(c echo.Context) error {
	caller := identity(c).Address

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := h.signal.Realtime(ctx, input)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						h.logger.Debug("WebSocket closed", zap.Error(wsErr))
					}
				} else {
					h.logger.Debug("Error reading message", zap.Error(err))
				}
				return
			}

			switch req.Type {
			case "listen":
				patients := h.visiblePatients(ctx, caller, req.Patients)
				select {
				case input <- patients:
				case <-ctx.Done():
					return
				}
				h.logger.Debug("Socket subscribe", zap.Strings("patients", patients))
			case "h": // heartbeat
			default:
				h.logger.Info("Unknown request type", zap.String("type", req.Type))
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case msg, ok := <-output:
			if !ok {
				return nil
			}
			// membership can change after listen; revoked providers stop here
			if !h.mayFollow(ctx, caller, msg.Patient) {
				continue
			}
			err := ws.WriteJSON(msg)
			if err != nil {
				h.logger.Debug("Error writing message", zap.Error(err))
				return nil
			}
		}
	}
}

// visiblePatients keeps the patients whose events caller may follow: itself
// and patients that authorized it.
func (h *RegistryHandler) visiblePatients(ctx context.Context, caller common.Address, requested []string) []string {
	visible := make([]string, 0, len(requested))
	for _, p := range requested {
		patient, err := healthvault.ParseAddress(p)
		if err != nil {
			continue
		}
		if h.mayFollow(ctx, caller, patient.Hex()) {
			visible = append(visible, patient.Hex())
		}
	}
	return visible
}

func (h *RegistryHandler) mayFollow(ctx context.Context, caller common.Address, patient string) bool {
	address, err := healthvault.ParseAddress(patient)
	if err != nil {
		return false
	}
	return address == caller || h.registry.IsProviderAuthorized(ctx, address, caller)
}
