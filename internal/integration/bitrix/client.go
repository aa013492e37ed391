package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"backend/internal/model"
	"backend/pkg/logger"

	"github.com/sirupsen/logrus"
)

// stageByStatus maps local application statuses to Bitrix24 SPA stage ids.
// Unlisted statuses keep the remote stage untouched.
var stageByStatus = map[model.ApplicationStatus]string{
	model.ApplicationStatusNew:           "NEW",
	model.ApplicationStatusAssignedToOTK: "PREPARATION",
	model.ApplicationStatusInProgress:    "1",
	model.ApplicationStatusAccepted:      "SUCCESS",
	model.ApplicationStatusRejected:      "FAILED",
	model.ApplicationStatusDefect:        "2",
}

// StageForStatus returns the CRM stage id for a local status, if one is
// mapped.
func StageForStatus(s model.ApplicationStatus) (string, bool) {
	stage, ok := stageByStatus[s]
	return stage, ok
}

// Client talks to a Bitrix24 inbound webhook (crm.item.* methods on a smart
// process entity). Field names on the remote side are installation-specific
// and come from a JSON mapping in config; the dedupe field holds our create
// dedupe key so replayed creates can find the record they already made.
type Client struct {
	webhookURL   string
	entityTypeID int
	fieldMap     map[string]string
	dedupeField  string
	http         *http.Client
	enabled      bool
	log          *logrus.Logger
}

type Config struct {
	WebhookURL   string
	EntityTypeID int
	// FieldMapJSON maps local field names to remote field codes,
	// e.g. {"application_number":"ufCrm5ApplicationNumber","dedupe_key":"ufCrm5TmaId"}.
	FieldMapJSON string
	Timeout      time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	fieldMap := map[string]string{}
	if cfg.FieldMapJSON != "" {
		if err := json.Unmarshal([]byte(cfg.FieldMapJSON), &fieldMap); err != nil {
			return nil, fmt.Errorf("parse bitrix24 field map: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		webhookURL:   strings.TrimRight(cfg.WebhookURL, "/"),
		entityTypeID: cfg.EntityTypeID,
		fieldMap:     fieldMap,
		dedupeField:  fieldMap["dedupe_key"],
		http:         &http.Client{Timeout: timeout},
		enabled:      cfg.WebhookURL != "",
		log:          logger.Get(),
	}, nil
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// MapFields translates local field names to the remote field codes, dropping
// fields the installation has no code for.
func (c *Client) MapFields(local map[string]interface{}) map[string]interface{} {
	remote := make(map[string]interface{}, len(local))
	for name, value := range local {
		if code, ok := c.fieldMap[name]; ok {
			remote[code] = value
		}
	}
	return remote
}

func (c *Client) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	if !c.enabled {
		return fmt.Errorf("bitrix24 is not configured")
	}

	params["entityTypeId"] = c.entityTypeID

	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/%s.json", c.webhookURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bitrix24 %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bitrix24 %s: read response: %w", method, err)
	}

	var envelope struct {
		Result           json.RawMessage `json:"result"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("bitrix24 %s: decode response: %w", method, err)
	}
	if envelope.Error != "" {
		return fmt.Errorf("bitrix24 %s: %s: %s", method, envelope.Error, envelope.ErrorDescription)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("bitrix24 %s: decode result: %w", method, err)
		}
	}
	return nil
}

// CreateItem creates a CRM item and returns its remote id. dedupeKey, when
// non-empty, is stored in the installation's dedupe field.
func (c *Client) CreateItem(ctx context.Context, fields map[string]interface{}, dedupeKey string) (int64, error) {
	remote := c.MapFields(fields)
	if dedupeKey != "" && c.dedupeField != "" {
		remote[c.dedupeField] = dedupeKey
	}

	var result struct {
		Item struct {
			ID int64 `json:"id"`
		} `json:"item"`
	}
	if err := c.call(ctx, "crm.item.add", map[string]interface{}{"fields": remote}, &result); err != nil {
		return 0, err
	}
	return result.Item.ID, nil
}

// UpdateItem updates fields on an existing CRM item.
func (c *Client) UpdateItem(ctx context.Context, id int64, fields map[string]interface{}) error {
	remote := c.MapFields(fields)
	if len(remote) == 0 {
		return nil
	}
	return c.call(ctx, "crm.item.update", map[string]interface{}{
		"id":     id,
		"fields": remote,
	}, nil)
}

// UpdateStage moves the CRM item to the stage mapped from the local status.
// Statuses with no mapped stage are a no-op.
func (c *Client) UpdateStage(ctx context.Context, id int64, status model.ApplicationStatus) error {
	stage, ok := StageForStatus(status)
	if !ok {
		return nil
	}
	return c.call(ctx, "crm.item.update", map[string]interface{}{
		"id":     id,
		"fields": map[string]interface{}{"stageId": stage},
	}, nil)
}

// DeleteItem removes the CRM item.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.call(ctx, "crm.item.delete", map[string]interface{}{"id": id}, nil)
}

// FindByDedupeKey looks up an item by the stored dedupe key. Returns (0, nil)
// when no item matches, which makes replayed creates safe: the worker checks
// here before crm.item.add.
func (c *Client) FindByDedupeKey(ctx context.Context, dedupeKey string) (int64, error) {
	if c.dedupeField == "" {
		return 0, nil
	}

	var result struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	err := c.call(ctx, "crm.item.list", map[string]interface{}{
		"filter": map[string]interface{}{c.dedupeField: dedupeKey},
		"select": []string{"id"},
	}, &result)
	if err != nil {
		return 0, err
	}
	if len(result.Items) == 0 {
		return 0, nil
	}
	return result.Items[0].ID, nil
}
