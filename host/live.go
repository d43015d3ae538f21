package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// LiveHost talks to a real home-automation backend over its REST API,
// grounded on the upstream HTTP plugin's resty client. Only the per-request
// timeout comes from config; failed requests are not retried.
type LiveHost struct {
	report   *Report
	resolver ImportResolver
	client   *resty.Client
	baseURL  string
	timeout  time.Duration
}

func NewLiveHost(report *Report, resolver ImportResolver, baseURL, token string, timeout time.Duration) *LiveHost {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(token).
		SetTimeout(timeout)
	return &LiveHost{report: report, resolver: resolver, client: client, baseURL: baseURL, timeout: timeout}
}

func (h *LiveHost) Call(ctx context.Context, service string, args []any) (any, error) {
	domain, svc, ok := strings.Cut(service, ".")
	if !ok {
		return nil, h.fail(ActionCall, service, "", fmt.Errorf("service %q must be in domain.service form", service))
	}

	payload := map[string]any{}
	if len(args) > 0 {
		switch v := args[0].(type) {
		case string:
			payload["entity_id"] = v
		case map[string]any:
			payload = v
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf("/api/services/%s/%s", domain, svc))
	if err != nil {
		return nil, h.fail(ActionCall, "", service, normalizeHostError(err))
	}
	if resp.IsError() {
		return nil, h.fail(ActionCall, "", service, fmt.Errorf("remote returned %s", resp.Status()))
	}

	h.report.AppendHAState(HAStateEvent{Action: ActionCall, Status: StatusSuccess, Service: service, Payload: payload})
	h.report.AppendEvent(SourceHA, LevelInfo, "call "+service, nil)
	return payload, nil
}

func (h *LiveHost) Get(ctx context.Context, entityID, _ string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var body struct {
		State string `json:"state"`
	}
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/api/states/" + entityID)
	if err != nil {
		return nil, h.fail(ActionGet, entityID, "", normalizeHostError(err))
	}
	if resp.IsError() {
		return nil, h.fail(ActionGet, entityID, "", fmt.Errorf("remote returned %s", resp.Status()))
	}

	h.report.AppendHAState(HAStateEvent{Action: ActionGet, Status: StatusSuccess, EntityID: entityID, Value: body.State})
	h.report.AppendEvent(SourceHA, LevelInfo, "get "+entityID, nil)
	return body.State, nil
}

func (h *LiveHost) Set(ctx context.Context, entityID string, value any) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	domain, _, _ := strings.Cut(entityID, ".")
	service, payload, direct := domainService(domain, entityID, value)

	var err error
	if direct {
		_, err = h.client.R().SetContext(ctx).SetBody(payload).Post("/api/states/" + entityID)
	} else {
		svcDomain, svcName, _ := strings.Cut(service, ".")
		_, err = h.client.R().SetContext(ctx).SetBody(payload).Post(fmt.Sprintf("/api/services/%s/%s", svcDomain, svcName))
	}
	if err != nil {
		return h.fail(ActionSet, entityID, service, normalizeHostError(err))
	}

	h.report.AppendHAState(HAStateEvent{Action: ActionSet, Status: StatusSuccess, EntityID: entityID, Value: value})
	h.report.AppendEvent(SourceHA, LevelInfo, "set "+entityID, nil)
	return nil
}

// domainService maps an entity's domain prefix to the right remote service
// for a SET, following the table in the host's Set contract.
func domainService(domain, entityID string, value any) (service string, payload map[string]any, direct bool) {
	switch domain {
	case "light", "switch", "fan", "input_boolean":
		if b, ok := value.(bool); ok {
			if b {
				return domain + ".turn_on", map[string]any{"entity_id": entityID}, false
			}
			return domain + ".turn_off", map[string]any{"entity_id": entityID}, false
		}
	case "input_number", "number":
		return domain + ".set_value", map[string]any{"entity_id": entityID, "value": value}, false
	case "input_select", "select":
		return domain + ".select_option", map[string]any{"entity_id": entityID, "option": value}, false
	}
	return "", map[string]any{"state": value}, true
}

func (h *LiveHost) Import(_ context.Context, name string) (string, error) {
	if h.resolver == nil {
		return "", errScriptNotFound(name)
	}
	src, ok := h.resolver.SourceForEndpoint(name)
	if !ok {
		return "", errScriptNotFound(name)
	}
	return src, nil
}

func (h *LiveHost) fail(action HAAction, entityID, service string, err error) error {
	h.report.AppendHAState(HAStateEvent{Action: action, Status: StatusFail, EntityID: entityID, Service: service, Error: err.Error()})
	h.report.AppendEvent(SourceHA, LevelError, err.Error(), nil)
	return err
}

// normalizeHostError collapses timeout/DNS/connection-refused conditions
// into a single message shape, per the host's deadline-handling contract.
func normalizeHostError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("home assistant request failed: timeout")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("home assistant request failed: timeout")
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("home assistant request failed: host not found")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("home assistant request failed: connection refused")
	}
	return fmt.Errorf("home assistant request failed: %s", err.Error())
}
