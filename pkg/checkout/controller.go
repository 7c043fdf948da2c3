package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrKeyRequired     = errors.New("checkout: public key is required")
	ErrOrderIDRequired = errors.New("checkout: order id is required")
	ErrNoTransport     = errors.New("checkout: transport is required")
	ErrSessionClosed   = errors.New("checkout: session is closed; construct a new controller for a new payment attempt")
)

const defaultCheckoutURL = "http://localhost:3001"

type sessionState int

const (
	stateUnopened sessionState = iota
	stateOpen
	stateClosed
)

// Options configures a Controller. Key is the merchant's publishable key
// (not a secret) and OrderID identifies the order this session confirms;
// both are required. Callbacks are optional.
type Options struct {
	Key     string
	OrderID string

	// CheckoutURL is the base URL of the hosted checkout surface.
	CheckoutURL string

	OnSuccess func(SuccessData)
	OnFailure func(FailureData)
	OnClose   func()

	Surface   Surface
	Transport Transport
	Logger    *zap.Logger
}

// Controller owns one embedded checkout session: the modal surface, the
// frame, and the message subscription that relays the payment outcome back
// to the merchant. One controller serves one payment attempt; after Close
// it cannot be reopened.
type Controller struct {
	mu sync.Mutex

	key         string
	orderID     string
	checkoutURL string
	origin      string
	frameToken  string

	onSuccess func(SuccessData)
	onFailure func(FailureData)
	onClose   func()

	surface   Surface
	transport Transport
	logger    *zap.Logger

	state            sessionState
	cancelSub        func()
	terminalReported bool
}

// New validates the options and builds a controller. Validation happens
// here, before any surface or transport work: a misconfigured session must
// never get as far as mounting a frame.
func New(opts Options) (*Controller, error) {
	if opts.Key == "" {
		return nil, ErrKeyRequired
	}
	if opts.OrderID == "" {
		return nil, ErrOrderIDRequired
	}
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}

	checkoutURL := opts.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = defaultCheckoutURL
	}
	parsed, err := url.Parse(checkoutURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("checkout: invalid checkout url %q", checkoutURL)
	}

	surface := opts.Surface
	if surface == nil {
		surface = &headlessSurface{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		key:         opts.Key,
		orderID:     opts.OrderID,
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		origin:      parsed.Scheme + "://" + parsed.Host,
		frameToken:  uuid.NewString(),
		onSuccess:   opts.OnSuccess,
		onFailure:   opts.OnFailure,
		onClose:     opts.OnClose,
		surface:     surface,
		transport:   opts.Transport,
		logger:      logger,
	}, nil
}

// FrameToken is the unpredictable per-session token embedded in the frame
// URL. Only messages echoing it are accepted, binding the subscription to
// the specific frame instance this controller created.
func (c *Controller) FrameToken() string {
	return c.frameToken
}

// ExpectedOrigin is the origin messages must declare to be accepted.
func (c *Controller) ExpectedOrigin() string {
	return c.origin
}

// FrameURL is the parameterized URL the checkout frame is pointed at.
func (c *Controller) FrameURL() string {
	q := url.Values{}
	q.Set("order_id", c.orderID)
	q.Set("embedded", "true")
	q.Set("key", c.key)
	q.Set("frame_token", c.frameToken)
	return c.checkoutURL + "/?" + q.Encode()
}

// Open mounts the surface and subscribes to the transport. Opening an
// already open session is a no-op warning, not a second frame. Opening a
// closed session is an error: a controller serves exactly one payment
// attempt.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateOpen:
		c.logger.Warn("checkout session is already open", zap.String("order_id", c.orderID))
		return nil
	case stateClosed:
		return ErrSessionClosed
	}

	if err := c.surface.Mount(c.FrameURL()); err != nil {
		return fmt.Errorf("checkout: failed to mount surface: %w", err)
	}
	c.cancelSub = c.transport.Subscribe(c.handleMessage)
	c.state = stateOpen

	c.logger.Debug("checkout session opened", zap.String("order_id", c.orderID))
	return nil
}

// Close tears down the session: surface unmounted, transport subscription
// cancelled, OnClose invoked — in that order, as one unit. It is idempotent;
// only the first close of an open session runs the teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed
	cancel := c.cancelSub
	c.cancelSub = nil
	c.mu.Unlock()

	c.surface.Unmount()
	if cancel != nil {
		cancel()
	}
	if c.onClose != nil {
		c.onClose()
	}
	c.logger.Debug("checkout session closed", zap.String("order_id", c.orderID))
}

func (c *Controller) handleMessage(msg Message) {
	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return
	}
	if msg.Token != c.frameToken || msg.Origin != c.origin {
		c.mu.Unlock()
		c.logger.Debug("dropping cross-frame message with bad origin or token",
			zap.String("declared_origin", msg.Origin))
		return
	}

	switch msg.Type {
	case MessagePaymentSuccess:
		if c.terminalReported {
			c.mu.Unlock()
			return
		}
		c.terminalReported = true
		onSuccess := c.onSuccess
		c.mu.Unlock()

		var data SuccessData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn("malformed payment_success payload", zap.Error(err))
		}
		if onSuccess != nil {
			onSuccess(data)
		}
		c.Close()

	case MessagePaymentFailed:
		if c.terminalReported {
			c.mu.Unlock()
			return
		}
		c.terminalReported = true
		onFailure := c.onFailure
		c.mu.Unlock()

		var data FailureData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn("malformed payment_failed payload", zap.Error(err))
		}
		// The modal stays open so the user can retry; closing is the
		// merchant's or the user's call.
		if onFailure != nil {
			onFailure(data)
		}

	case MessageCloseModal:
		c.mu.Unlock()
		c.Close()

	default:
		// Unknown types are ignored for forward compatibility.
		c.mu.Unlock()
	}
}
