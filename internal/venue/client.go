package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/geisten/bot/internal/domain"
	"github.com/geisten/bot/internal/infra"
)

// Transport-level failures: the venue did not give an authoritative
// answer. Callers retry these within their bound.
var ErrTransport = errors.New("venue: transport error")

// ErrOrderNotFound is returned by Status when the venue no longer knows
// the order id (404). This is the one path where local and remote state
// diverge and must be reconciled explicitly.
var ErrOrderNotFound = errors.New("venue: order not found")

// RejectedError is an authoritative venue rejection. The order must not
// be retried by the transport layer; retry is a strategy decision on
// the next signal.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("venue: order rejected: %s", e.Reason)
}

// Ack is the venue's acceptance of a submitted order.
type Ack struct {
	OrderID string
	Status  string
}

const requestTimeout = 5 * time.Second

// Client talks to the venue's order endpoints. All requests are signed
// and pass through a shared rate limiter and circuit breaker, since the
// submit and status loops run concurrently against one API quota.
type Client struct {
	orderURL   string
	symbol     string
	recvWindow int
	signer     *Signer
	httpClient *http.Client
	limiter    *infra.RateLimiter
	breaker    *infra.Breaker
}

// NewClient creates a venue client for one trading symbol.
func NewClient(orderURL, symbol string, recvWindow int, signer *Signer) *Client {
	return &Client{
		orderURL:   orderURL,
		symbol:     symbol,
		recvWindow: recvWindow,
		signer:     signer,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    infra.NewRateLimiter(5, 10),
		breaker:    infra.NewBreaker("venue", 5, 30*time.Second),
	}
}

// Submit sends a signed limit-order request. A transport error is
// reported as ErrTransport; an authoritative rejection as *RejectedError.
func (c *Client) Submit(ctx context.Context, side domain.Side, order domain.Order) (Ack, error) {
	params := url.Values{}
	params.Set("symbol", c.symbol)
	params.Set("side", side.VenueSide())
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", order.Amount.String())
	params.Set("price", order.Price.String())
	params.Set("recvWindow", strconv.Itoa(c.recvWindow))
	params.Set("timestamp", strconv.FormatInt(order.UnixMilli(), 10))
	params.Set("signature", c.signer.Sign(params))

	body, status, err := c.do(ctx, http.MethodPost, c.orderURL, params)
	if err != nil {
		return Ack{}, err
	}

	if status >= 400 && status < 500 {
		return Ack{}, &RejectedError{Reason: rejectionReason(body, status)}
	}

	var resp struct {
		Status  string      `json:"status"`
		OrderID json.Number `json:"orderId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Ack{}, fmt.Errorf("%w: malformed submit response: %v", ErrTransport, err)
	}

	ack := Ack{OrderID: resp.OrderID.String(), Status: resp.Status}
	if resp.Status != domain.StatusNew {
		return ack, &RejectedError{Reason: resp.Status}
	}
	return ack, nil
}

// Status queries a placed order. Returns one of the venue statuses, or
// ErrOrderNotFound if the venue no longer knows the id.
func (c *Client) Status(ctx context.Context, orderID string) (string, error) {
	params := url.Values{}
	params.Set("symbol", c.symbol)
	params.Set("origClientOrderId", orderID)
	params.Set("recvWindow", strconv.Itoa(c.recvWindow))
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.signer.Sign(params))

	body, status, err := c.do(ctx, http.MethodGet, c.orderURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	if status == http.StatusNotFound {
		return "", fmt.Errorf("%w: %q", ErrOrderNotFound, orderID)
	}
	if status >= 400 && status < 500 {
		return "", fmt.Errorf("%w: status query failed with %d", ErrTransport, status)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed status response: %v", ErrTransport, err)
	}
	return resp.Status, nil
}

// do performs one guarded HTTP round trip and returns the body and
// status code. 5xx and network failures are flattened into ErrTransport.
func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	if !c.breaker.Allow() {
		return nil, 0, fmt.Errorf("%w: circuit open", ErrTransport)
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.Failure()
		return nil, 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.Failure()
		return nil, 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode >= 500 {
		c.breaker.Failure()
		return nil, 0, fmt.Errorf("%w: venue answered %d", ErrTransport, resp.StatusCode)
	}

	// 4xx is an authoritative answer, not a transport failure.
	c.breaker.Success()
	return body, resp.StatusCode, nil
}

func rejectionReason(body []byte, status int) string {
	var venueErr struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body, &venueErr); err == nil && venueErr.Msg != "" {
		return venueErr.Msg
	}
	return fmt.Sprintf("http %d", status)
}
