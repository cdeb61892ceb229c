package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/sync"
)

// Service is the service name providers use to select this implementation
const Service = "http"

// Handlers implements the four operations on top of a registry.
type Handlers struct {
	registry *registry.Registry
	opts     []ClientOption
}

// Register adds the http service to h for every model reg can create records of.
// opts apply to every client the service builds.
func Register(h *sync.Handlers, reg *registry.Registry, opts ...ClientOption) {
	hs := &Handlers{registry: reg, opts: opts}
	h.RegisterClient(Service, hs.client)
	for _, model := range models.SyncModels {
		if !reg.Supports(model) {
			continue
		}
		h.Register(Service, sync.OpReceive, model, sync.HandlerFunc(hs.receive))
		h.Register(Service, sync.OpProcess, model, sync.HandlerFunc(hs.process))
		h.Register(Service, sync.OpPrepare, model, sync.HandlerFunc(hs.prepare))
		h.Register(Service, sync.OpSend, model, sync.HandlerFunc(hs.send))
	}
}

func (hs *Handlers) client(_ context.Context, provider *models.Provider, _ *models.Schedule) (any, error) {
	return NewClient(provider, hs.opts...)
}

func clientOf(req *sync.Request) (*Client, error) {
	c, ok := req.Client.(*Client)
	if !ok {
		return nil, fmt.Errorf("unexpected client type %T", req.Client)
	}
	return c, nil
}

// shortName turns "flight.aircraft" into "aircraft"
func shortName(model string) string {
	return strings.TrimPrefix(model, "flight.")
}

func (*Handlers) receive(ctx context.Context, req *sync.Request) (any, error) {
	c, err := clientOf(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.Get(ctx, req.Kwarg("path", shortName(req.Schedule.Model)), OnBehalfOf(req.RunAs()))
	if resp != nil {
		record(ctx, req, models.DirectionInbound, resp.Describe(), string(resp.Body))
	}
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("response of %s is not valid JSON", resp.Request)
	}
	return resp.Body, nil
}

func (hs *Handlers) process(ctx context.Context, req *sync.Request) (any, error) {
	data, ok := req.Data.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected received data type %T", req.Data)
	}

	items := gjson.GetBytes(data, req.Kwarg("items_path", "@this"))
	if !items.IsArray() {
		return nil, fmt.Errorf("items at %q are not a JSON array", req.Kwarg("items_path", "@this"))
	}

	idField := req.Kwarg("id_field", "id")
	extProvider := req.Kwarg("external_provider", req.Provider.Name)
	processed := 0
	for i, item := range items.Array() {
		id := item.Get(idField)
		if !id.Exists() || id.String() == "" {
			return processed, fmt.Errorf("item %d has no %q", i, idField)
		}
		values, ok := item.Value().(map[string]any)
		if !ok {
			return processed, fmt.Errorf("item %d is not a JSON object", i)
		}
		if _, err := hs.registry.GetOrCreateLocalID(ctx, req.Provider.ID, req.Schedule.Model,
			id.String(), extProvider, values); err != nil {
			return processed, fmt.Errorf("item %s: %w", id.String(), err)
		}
		processed++
	}

	logger.Infow("Processed items",
		"run_id", req.RunID,
		"schedule", req.Schedule.Name,
		"run_as", req.RunAs(),
		"count", processed,
	)
	return processed, nil
}

type outboundEntry struct {
	ExternalID string `json:"external_id"`
	LocalID    int64  `json:"local_id"`
}

type outboundDocument struct {
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Entries  []outboundEntry `json:"entries"`
}

func (hs *Handlers) prepare(ctx context.Context, req *sync.Request) (any, error) {
	entries, err := hs.registry.List(ctx, req.Provider.ID, req.Schedule.Model)
	if err != nil {
		return nil, err
	}
	doc := outboundDocument{
		Provider: req.Provider.Name,
		Model:    req.Schedule.Model,
		Entries:  make([]outboundEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, outboundEntry{ExternalID: e.ExternalID, LocalID: e.LocalID})
	}
	return json.Marshal(doc)
}

func (*Handlers) send(ctx context.Context, req *sync.Request) (any, error) {
	path := req.Kwarg("send_path", "")
	if path == "" {
		return nil, nil
	}
	body, ok := req.Data.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected prepared data type %T", req.Data)
	}
	c, err := clientOf(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.Post(ctx, path, body, OnBehalfOf(req.RunAs()))
	if resp != nil {
		record(ctx, req, models.DirectionOutbound, resp.Describe(), string(body))
	}
	return nil, err
}

// record writes an exchange to the sync log, including failed ones
func record(ctx context.Context, req *sync.Request, direction models.Direction, headers, body string) {
	if err := req.Log(ctx, direction, headers, body); err != nil {
		logger.Warnw("Failed to write sync log", "schedule_id", req.Schedule.ID, "error", err)
	}
}
